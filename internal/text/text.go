// Package text provides the bilingual user-facing strings.
package text

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	NotAvailable          = "not_available"
	InvalidInput          = "invalid_input"
	ItemNotFound          = "item_not_found"
	CharacterNotFound     = "character_not_found"
	ItemSaved             = "item_saved"
	CharacterSaved        = "character_saved"
	ItemIDRequired        = "item_id_required"
	CharacterNameRequired = "character_name_required"
	UnknownStat           = "unknown_stat"
	NoResults             = "no_results"
	HeaderStat            = "header_stat"
	HeaderItem            = "header_item"
	HeaderCharacter       = "header_character"
	HeaderResult          = "header_result"
	HeaderCategory        = "header_category"
	HeaderClass           = "header_class"
	CriticalDamage        = "critical_damage"
	DamageDifference      = "damage_difference"
	SaveThrottled         = "save_throttled"
)

// Chinese is the default display language.
var (
	Chinese = language.SimplifiedChinese
	English = language.English

	supported = []language.Tag{Chinese, English}
	matcher   = language.NewMatcher(supported)
)

//go:embed messages.yaml
var defaultMessages []byte

// Translation holds one message in each supported language.
type Translation struct {
	ZH string `yaml:"zh"`
	EN string `yaml:"en"`
}

// TextData represents the structure of a messages file.
type TextData struct {
	Messages map[string]Translation `yaml:"messages"`
}

// Text provides message lookup for one language.
type Text struct {
	data *TextData
	tag  language.Tag
	mu   sync.RWMutex
}

var (
	instance *Text
	once     sync.Once
)

// Parse builds a Text from YAML content.
func Parse(content []byte, tag language.Tag) (*Text, error) {
	var data TextData
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse text file: %w", err)
	}
	if len(data.Messages) == 0 {
		return nil, fmt.Errorf("text file has no messages")
	}
	return &Text{data: &data, tag: tag}, nil
}

// Load loads messages from a YAML file.
func Load(path string, tag language.Tag) (*Text, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return Parse(content, tag)
}

// New returns the built-in messages in the given language.
func New(tag language.Tag) *Text {
	t, err := Parse(defaultMessages, tag)
	if err != nil {
		panic(err)
	}
	return t
}

// Initialize sets the singleton to the built-in messages in tag.
func Initialize(tag language.Tag) {
	once.Do(func() {
		instance = New(tag)
	})
}

// GetInstance returns the singleton, falling back to Chinese if Initialize was never called.
func GetInstance() *Text {
	Initialize(Chinese)
	return instance
}

// ParseLanguage maps a BCP 47 tag ("zh", "en-US", "zh-Hans") to the closest supported language.
func ParseLanguage(s string) (language.Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chinese, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", s, err)
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.Und, fmt.Errorf("unsupported language %q", s)
	}
	return supported[idx], nil
}

// Language returns the display language.
func (t *Text) Language() language.Tag {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tag
}

// SetLanguage switches the display language.
func (t *Text) SetLanguage(tag language.Tag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tag = tag
}

// Get returns the message for key, formatted with args. Unknown keys return the key.
func (t *Text) Get(key string, args ...any) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tr, ok := t.data.Messages[key]
	if !ok {
		return key
	}
	msg := tr.ZH
	if t.tag == English || msg == "" {
		msg = tr.EN
	}
	if msg == "" {
		msg = tr.ZH
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return msg
}
