package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
)

// Document is the JSON export layout.
type Document struct {
	Run     model.RunSummary     `json:"run"`
	Flags   []quote.FlagCount    `json:"flags"`
	Results []*model.QuoteResult `json:"results"`
}

// NewDocument builds the JSON document of a report.
func NewDocument(r *Report) Document {
	results := make([]*model.QuoteResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			results = append(results, res)
		}
	}
	return Document{Run: r.Summary, Flags: quote.CountFlags(results), Results: results}
}

// WriteJSON writes the report as an indented JSON document.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(r)); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}
