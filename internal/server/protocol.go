package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lawnchairsociety/statcalc/internal/calc"
	"github.com/lawnchairsociety/statcalc/internal/stats"
	"github.com/lawnchairsociety/statcalc/internal/store"
	"github.com/lawnchairsociety/statcalc/internal/text"
)

// Operations a client may send.
const (
	OpResolve       = "resolve"
	OpCrit          = "crit"
	OpDiff          = "diff"
	OpSearch        = "search"
	OpItem          = "item"
	OpCharacter     = "character"
	OpSaveItem      = "save_item"
	OpSaveCharacter = "save_character"
	OpCatalog       = "catalog"

	// OpReload is pushed to every client when the store changes on disk.
	OpReload = "reload"
)

// Value is a stat value that may arrive as a JSON string or number.
type Value string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("stat value must be a string or number: %s", b)
	}
	*v = Value(n.String())
	return nil
}

// StatValue is one named stat in save requests and record replies.
type StatValue struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Request is a client message. Fields beyond ID and Op depend on the operation.
type Request struct {
	ID string `json:"id,omitempty"`
	Op string `json:"op"`

	// resolve, item, character, save_item, save_character
	Item           string           `json:"item,omitempty"`
	Character      string           `json:"character,omitempty"`
	ItemStats      map[string]Value `json:"item_stats,omitempty"`
	CharacterStats map[string]Value `json:"character_stats,omitempty"`

	// resolve, search
	Stats []string `json:"stats,omitempty"`

	// search, save_item
	Class string `json:"class,omitempty"`

	// save_item, save_character
	Values []StatValue `json:"values,omitempty"`

	// crit
	Base  Value `json:"base,omitempty"`
	Bonus Value `json:"bonus,omitempty"`

	// diff
	Damage1 Value `json:"damage1,omitempty"`
	Damage2 Value `json:"damage2,omitempty"`
}

// Response answers a Request, echoing its ID and Op.
type Response struct {
	ID      string       `json:"id,omitempty"`
	Op      string       `json:"op"`
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Value   string       `json:"value,omitempty"`
	Results []ResultRow  `json:"results,omitempty"`
	Items   []ItemRow    `json:"items,omitempty"`
	Record  *RecordView  `json:"record,omitempty"`
	Catalog []CatalogRow `json:"catalog,omitempty"`
}

// ResultRow is one resolved stat.
type ResultRow struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

// ItemRow is one search hit.
type ItemRow struct {
	ID    string `json:"id"`
	Class string `json:"class"`
}

// RecordView is a stored item or character.
type RecordView struct {
	ID    string      `json:"id"`
	Class string      `json:"class,omitempty"`
	Stats []StatValue `json:"stats"`
}

// CatalogRow describes one stat.
type CatalogRow struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	LabelZH  string `json:"label_zh,omitempty"`
	LabelEN  string `json:"label_en,omitempty"`
	Category string `json:"category"`
	Source   string `json:"source,omitempty"`
}

// dispatch decodes one message from c and runs it.
func (s *Server) dispatch(c *Client, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{Error: fmt.Sprintf("malformed request: %v", err)}
	}
	if (req.Op == OpSaveItem || req.Op == OpSaveCharacter) && c != nil {
		if r := c.saves.Check(); !r.Allowed {
			return &Response{ID: req.ID, Op: req.Op, Error: s.text.Get(text.SaveThrottled, r.WaitSeconds())}
		}
	}
	return s.handle(&req)
}

// handle runs a decoded request.
func (s *Server) handle(req *Request) *Response {
	resp := &Response{ID: req.ID, Op: req.Op}

	var err error
	switch req.Op {
	case OpResolve:
		err = s.handleResolve(req, resp)
	case OpCrit:
		resp.Value, err = stats.CriticalDamage(string(req.Base), string(req.Bonus))
	case OpDiff:
		resp.Value, err = stats.DamageDifference(string(req.Damage1), string(req.Damage2))
	case OpSearch:
		err = s.handleSearch(req, resp)
	case OpItem:
		err = s.handleRecord(req.Item, s.calc.Item, resp)
	case OpCharacter:
		err = s.handleRecord(req.Character, s.calc.Character, resp)
	case OpSaveItem:
		err = s.handleSaveItem(req, resp)
	case OpSaveCharacter:
		err = s.handleSaveCharacter(req, resp)
	case OpCatalog:
		s.handleCatalog(resp)
	default:
		err = fmt.Errorf("unknown op %q", req.Op)
	}

	if err != nil {
		resp.Error = s.describe(req, err)
		return resp
	}
	resp.OK = true
	return resp
}

func (s *Server) handleResolve(req *Request, resp *Response) error {
	results, err := s.calc.Resolve(calc.ResolveRequest{
		Item:           req.Item,
		Character:      req.Character,
		ItemStats:      plainValues(req.ItemStats),
		CharacterStats: plainValues(req.CharacterStats),
		Stats:          req.Stats,
	})
	if err != nil {
		return err
	}

	resp.Results = make([]ResultRow, 0, len(results))
	for _, r := range results {
		row := ResultRow{
			Key:       r.Key,
			Label:     s.label(r.Key),
			Value:     r.Result.String(),
			Available: r.Result.Available(),
		}
		if !row.Available {
			row.Value = s.text.Get(text.NotAvailable)
		}
		resp.Results = append(resp.Results, row)
	}
	return nil
}

func (s *Server) handleSearch(req *Request, resp *Response) error {
	found, err := s.calc.Search(req.Stats, req.Class)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		resp.Message = s.text.Get(text.NoResults)
		return nil
	}
	resp.Items = make([]ItemRow, 0, len(found))
	for _, e := range found {
		resp.Items = append(resp.Items, ItemRow{ID: e.ID, Class: e.Class})
	}
	return nil
}

func (s *Server) handleRecord(id string, load func(string) (*store.Record, error), resp *Response) error {
	rec, err := load(id)
	if err != nil {
		return err
	}
	resp.Record = recordView(rec)
	return nil
}

func (s *Server) handleSaveItem(req *Request, resp *Response) error {
	rec, err := s.calc.SaveItem(req.Item, req.Class, storeStats(req.Values))
	if err != nil {
		return err
	}
	resp.Record = recordView(rec)
	resp.Message = s.text.Get(text.ItemSaved, rec.ID)
	return nil
}

func (s *Server) handleSaveCharacter(req *Request, resp *Response) error {
	rec, err := s.calc.SaveCharacter(req.Character, storeStats(req.Values))
	if err != nil {
		return err
	}
	resp.Record = recordView(rec)
	resp.Message = s.text.Get(text.CharacterSaved, rec.ID)
	return nil
}

func (s *Server) handleCatalog(resp *Response) {
	tag := s.text.Language()
	for _, def := range s.calc.Catalog().Definitions() {
		row := CatalogRow{
			Key:      def.Key,
			Label:    def.Label(tag),
			LabelZH:  def.LabelZH,
			LabelEN:  def.LabelEN,
			Category: def.Category.String(),
		}
		if def.Derivation != nil {
			row.Source = def.Derivation.Source
		}
		resp.Catalog = append(resp.Catalog, row)
	}
}

// describe turns an operation error into a message for the client.
func (s *Server) describe(req *Request, err error) string {
	switch {
	case errors.Is(err, stats.ErrInvalidInput):
		return s.text.Get(text.InvalidInput)
	case errors.Is(err, calc.ErrUnknownStat):
		return s.text.Get(text.UnknownStat, detail(err))
	case errors.Is(err, calc.ErrMissingID):
		if req.Op == OpCharacter || req.Op == OpSaveCharacter {
			return s.text.Get(text.CharacterNameRequired)
		}
		return s.text.Get(text.ItemIDRequired)
	case errors.Is(err, calc.ErrItemNotFound):
		return s.text.Get(text.ItemNotFound, req.Item)
	case errors.Is(err, calc.ErrCharacterNotFound):
		return s.text.Get(text.CharacterNotFound, req.Character)
	default:
		return err.Error()
	}
}

// detail returns the part of a "sentinel: detail" error after the sentinel.
func detail(err error) string {
	msg := err.Error()
	if inner := errors.Unwrap(err); inner != nil {
		prefix := inner.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}

func (s *Server) label(key string) string {
	if def, ok := s.calc.Catalog().Lookup(key); ok {
		return def.Label(s.text.Language())
	}
	return key
}

func recordView(rec *store.Record) *RecordView {
	view := &RecordView{ID: rec.ID, Class: rec.Class, Stats: make([]StatValue, 0, len(rec.Stats))}
	for _, st := range rec.Stats {
		view.Stats = append(view.Stats, StatValue{Name: st.Name, Value: Value(st.Value)})
	}
	return view
}

func storeStats(values []StatValue) []store.Stat {
	out := make([]store.Stat, 0, len(values))
	for _, v := range values {
		out = append(out, store.Stat{Name: v.Name, Value: string(v.Value)})
	}
	return out
}

func plainValues(values map[string]Value) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = string(v)
	}
	return out
}
