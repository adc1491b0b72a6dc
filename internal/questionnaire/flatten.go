package questionnaire

// Entry is one flattened question: its linkId and display text.
type Entry struct {
	LinkID string `json:"link_id"`
	Text   string `json:"text"`
}

// Index maps a question's linkId to its display text. It is rebuilt
// fresh for every analysis run and never updated incrementally.
type Index map[string]string

// Lookup resolves a linkId to its display text, or "" when unknown.
func (idx Index) Lookup(linkID string) string {
	return idx[linkID]
}

// Flatten walks the item tree depth-first, parents before children,
// preserving array order. Items carrying neither a linkId nor a text are
// not emitted, but their children are still visited. Flatten never
// fails: any missing or malformed branch contributes no entries.
func Flatten(q *Questionnaire) []Entry {
	if q == nil {
		return nil
	}
	return flattenItems(rootItems(q.doc), nil)
}

// BuildIndex folds flattened entries into a linkId-to-text lookup. A
// later entry overwrites an earlier one with the same linkId: duplicates
// resolve last-write-wins in flattening order. The index is best-effort
// display metadata, so duplicates are tolerated rather than rejected.
func BuildIndex(entries []Entry) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		idx[e.LinkID] = e.Text
	}
	return idx
}

// rootItems digs out the top-level item array under properties.item.items.
func rootItems(doc any) []any {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return nil
	}
	item, ok := props["item"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := item["items"].([]any)
	if !ok {
		return nil
	}
	return items
}

func flattenItems(items []any, acc []Entry) []Entry {
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}

		linkID := strVal(m, "linkId")
		text := strVal(m, "text")
		if linkID != "" || text != "" {
			acc = append(acc, Entry{LinkID: linkID, Text: text})
		}

		if children, ok := m["item"].([]any); ok {
			acc = flattenItems(children, acc)
		}
	}
	return acc
}

func strVal(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
