package report

import (
	"encoding/json"
	"io"
)

// Renderer writes a month view in some output format.
type Renderer interface {
	Render(w io.Writer, view *MonthView) error
}

type JSONRenderer struct {
	Indent bool
}

func (r JSONRenderer) Render(w io.Writer, view *MonthView) error {
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(view)
}
