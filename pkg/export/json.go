package export

import (
	"encoding/json"
	"io"

	"github.com/logflow/caseline/internal/model"
)

type jsonDocument struct {
	RunID     string              `json:"run_id,omitempty"`
	Source    string              `json:"source,omitempty"`
	CreatedAt string              `json:"created_at"`
	Cases     []*model.CaseResult `json:"cases"`
}

// WriteJSON writes the nested results with run metadata.
func WriteJSON(w io.Writer, results []*model.CaseResult, meta Metadata) error {
	if results == nil {
		results = []*model.CaseResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonDocument{
		RunID:     meta.RunID,
		Source:    meta.Source,
		CreatedAt: meta.pairs()["created_at"],
		Cases:     results,
	})
}
