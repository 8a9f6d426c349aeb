package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/ctxpack/pkg/types"
)

// Format names an output rendering
type Format string

const (
	JSON Format = "json"
	Text Format = "text"
)

// ErrUnknownFormat is returned for format names other than json and text
var ErrUnknownFormat = errors.New("unknown output format")

// Parse validates a format name; empty selects JSON
func Parse(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", JSON:
		return JSON, nil
	case Text:
		return Text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// packEnvelope is the JSON shape of a successful pack result
type packEnvelope struct {
	SessionID string `json:"session_id,omitempty"`
	*types.ContextPack
}

// Render writes a pack result. Ambiguity results render as the structured
// error object in both formats' own style.
func Render(w io.Writer, res *types.PackResult, f Format) error {
	if res == nil || (res.Pack == nil && res.Ambiguous == nil) {
		return errors.New("empty pack result")
	}
	switch f {
	case JSON, "":
		return renderJSON(w, res)
	case Text:
		return renderText(w, res)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// String renders to a string
func String(res *types.PackResult, f Format) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, res, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderJSON(w io.Writer, res *types.PackResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if res.Ambiguous != nil {
		return enc.Encode(res.Ambiguous)
	}
	return enc.Encode(packEnvelope{SessionID: res.SessionID, ContextPack: res.Pack})
}

func renderText(w io.Writer, res *types.PackResult) error {
	tw := &textWriter{w: w}

	if amb := res.Ambiguous; amb != nil {
		tw.printf("error: %s: %q matches %d symbols\n", amb.Code, amb.Token, len(amb.Candidates))
		for _, c := range amb.Candidates {
			tw.printf("  %s\n", c)
		}
		return tw.err
	}

	pack := res.Pack
	if res.SessionID != "" {
		tw.printf("# session %s\n", res.SessionID)
	}
	tw.printf("# %d slices, %d tokens\n", len(pack.Slices), pack.BudgetUsed)

	for _, s := range pack.Slices {
		tw.printf("\n## %s [%s, %s]", s.ID, s.Label, s.Code.Rep)
		if s.Lines != nil {
			tw.printf(" lines %d-%d", s.Lines.Start, s.Lines.End)
		}
		tw.printf("\n")
		switch {
		case s.Code.HasText():
			tw.printf("%s\n", s.Code.Text)
		case s.Signature != "":
			tw.printf("%s\n", s.Signature)
		}
	}

	if len(pack.SignaturesOnly) > 0 {
		tw.printf("\nsignatures only: %s\n", strings.Join(pack.SignaturesOnly, ", "))
	}
	if len(pack.Unchanged) > 0 {
		tw.printf("\nunchanged: %s\n", strings.Join(pack.Unchanged, ", "))
	}
	if st := pack.CacheStats; st != nil {
		tw.printf("\ncache: %d hits, %d misses (%.1f%%)\n", st.Hits, st.Misses, st.HitRate*100)
	}
	if len(pack.CoherenceWarnings) > 0 {
		tw.printf("\nwarnings:\n")
		for _, warning := range pack.CoherenceWarnings {
			tw.printf("  - %s\n", warning)
		}
	}
	return tw.err
}

// textWriter keeps the first write error
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}
