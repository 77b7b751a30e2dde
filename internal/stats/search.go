package stats

// AllClasses matches every class in item searches.
const AllClasses = "All"

// Entry is an item as seen by the search filter.
type Entry struct {
	ID    string
	Class string
	Stats map[string]string
}

// SearchItems returns the entries whose class matches and that carry every
// required stat, in input order.
func SearchItems(entries []Entry, required []string, class string) []Entry {
	if class == "" {
		class = AllClasses
	}

	var matched []Entry
	for _, e := range entries {
		entryClass := e.Class
		if entryClass == "" {
			entryClass = AllClasses
		}
		if class != AllClasses && entryClass != AllClasses && entryClass != class {
			continue
		}
		if hasAll(e.Stats, required) {
			matched = append(matched, e)
		}
	}
	return matched
}

func hasAll(stats map[string]string, keys []string) bool {
	for _, k := range keys {
		if _, ok := stats[k]; !ok {
			return false
		}
	}
	return true
}
