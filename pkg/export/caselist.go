package export

import (
	"encoding/csv"
	"io"
)

// WriteCaseList writes case IDs as a one-column CSV with header case_id.
func WriteCaseList(w io.Writer, caseIDs []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"case_id"}); err != nil {
		return err
	}
	for _, id := range caseIDs {
		if err := cw.Write([]string{id}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
