package listing

// Latest returns the item with the newest modification time, or nil for an
// empty listing. When several items share the newest time the first one in
// listing order wins; listing order is the only tie-break signal the source
// provides. The comparison uses parsed timestamps, never the raw strings.
func Latest(items []Item) *Item {
	if len(items) == 0 {
		return nil
	}

	latest := 0
	for i := 1; i < len(items); i++ {
		if items[i].ModTime.After(items[latest].ModTime) {
			latest = i
		}
	}

	return &items[latest]
}
