package tui

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrDocumentsShape is reported before anything is sent to the server.
var ErrDocumentsShape = errors.New(`Invalid JSON. Expected: { "documents": [{ "id","title","content" }] }`)

// SampleDocuments pre-fills the docs view.
const SampleDocuments = `{
  "documents": [
    {
      "id": "refund",
      "title": "Refund Policy",
      "content": "No refunds on digital goods. Physical items can be returned within 30 days."
    },
    {
      "id": "shipping",
      "title": "Shipping Policy",
      "content": "We ship in 1-2 business days. International shipping takes 7-14 days."
    }
  ]
}`

// SampleQuestion pre-fills the ask view.
const SampleQuestion = "How long is international shipping?"

// CheckDocuments accepts only {"documents": [...]} where every entry has
// string id, title and content.
func CheckDocuments(raw string) error {
	if !gjson.Valid(raw) {
		return ErrDocumentsShape
	}
	docs := gjson.Get(raw, "documents")
	if !docs.IsArray() {
		return ErrDocumentsShape
	}
	ok := true
	docs.ForEach(func(_, d gjson.Result) bool {
		if !d.IsObject() {
			ok = false
			return false
		}
		for _, key := range []string{"id", "title", "content"} {
			if d.Get(key).Type != gjson.String {
				ok = false
				return false
			}
		}
		return true
	})
	if !ok {
		return ErrDocumentsShape
	}
	return nil
}
