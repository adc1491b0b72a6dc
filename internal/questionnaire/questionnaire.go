// Package questionnaire loads hierarchical intake questionnaire documents
// and flattens them into an addressable question index.
package questionnaire

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// Questionnaire holds a decoded questionnaire document. The item tree
// lives under properties.item.items, and each item nests its children
// under its own item field. The document is kept loosely typed on
// purpose: upstream questionnaire exports vary, and an absent or
// oddly-shaped branch must degrade to "no questions", never to a failure.
type Questionnaire struct {
	raw []byte
	doc any
}

// Parse decodes a questionnaire document from its serialized form. The
// verbatim bytes are retained: extraction prompts embed the original
// serialization, not a re-marshal.
func Parse(data []byte) (*Questionnaire, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "questionnaire: decode document")
	}
	return &Questionnaire{raw: data, doc: doc}, nil
}

// LoadFile reads and decodes a questionnaire document from disk.
func LoadFile(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "questionnaire: read document")
	}
	q, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Raw returns the questionnaire's original serialized form.
func (q *Questionnaire) Raw() []byte {
	if q == nil {
		return nil
	}
	return q.raw
}
