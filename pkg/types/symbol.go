package types

import (
	"errors"
	"strings"
)

// SymbolKind represents the kind of an addressable symbol
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
)

// LineRange is an inclusive, 1-based range of source lines
type LineRange struct {
	Start int `json:"start" cbor:"1,keyasint"`
	End   int `json:"end" cbor:"2,keyasint"`
}

// Overlaps reports whether two ranges share at least one line
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Contains reports whether line falls inside the range
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Len returns the number of lines in the range
func (r LineRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Symbol represents a function, method or class registered in a ProjectIndex.
// Symbols are immutable once the index is built.
type Symbol struct {
	// Identification
	ID            string     `cbor:"1,keyasint"` // rel/path:Qualified.Name
	File          string     `cbor:"2,keyasint"` // slash-separated, relative to project root
	Name          string     `cbor:"3,keyasint"` // raw name
	QualifiedName string     `cbor:"4,keyasint"`
	Kind          SymbolKind `cbor:"5,keyasint"`

	// Content
	Signature   string `cbor:"6,keyasint"`
	Docstring   string `cbor:"7,keyasint"`
	ContentHash string `cbor:"8,keyasint"` // ETag of signature+body

	// Location
	Lines LineRange `cbor:"9,keyasint"`
}

// SymbolID builds the file-qualified id for a symbol
func SymbolID(file, qualifiedName string) string {
	return file + ":" + qualifiedName
}

// SplitSymbolID splits an id into file and qualified name. The split happens at
// the last colon so Windows drive letters survive.
func SplitSymbolID(id string) (file, qualifiedName string, ok bool) {
	i := strings.LastIndex(id, ":")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindClass:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// Validate performs comprehensive validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}
	if s.File == "" {
		return errors.New("symbol file is required")
	}
	if err := s.ValidateKind(); err != nil {
		return err
	}
	if s.ID != SymbolID(s.File, s.QualifiedName) {
		return errors.New("symbol id must be file-qualified")
	}

	// Position validation
	if s.Lines.Start <= 0 || s.Lines.End <= 0 {
		return errors.New("invalid position: line numbers must be positive")
	}
	if s.Lines.Start > s.Lines.End {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	return nil
}
