package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SourceKind identifies how the source content of a generation request is encoded.
type SourceKind string

// Supported source kinds.
const (
	SourceText SourceKind = "text"
	SourcePDF  SourceKind = "pdf"
	SourceDOCX SourceKind = "docx"
	SourceURL  SourceKind = "url"
)

// ParseSourceKind converts a caller-supplied value into a SourceKind.
// Matching is case-insensitive; anything unrecognized is rejected rather
// than treated as plain text.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceText:
		return SourceText, nil
	case SourcePDF:
		return SourcePDF, nil
	case SourceDOCX:
		return SourceDOCX, nil
	case SourceURL:
		return SourceURL, nil
	}
	return "", &RequestError{
		kind:   KindUnsupportedSourceKind,
		Field:  "sourceKind",
		Reason: fmt.Sprintf("unsupported source kind %q", s),
	}
}

// ClozeStyle selects the card-authoring instructions given to the model.
type ClozeStyle string

// Supported cloze styles.
const (
	ClozeSingle ClozeStyle = "single"
	ClozeMulti  ClozeStyle = "multi"
	ClozeQA     ClozeStyle = "qa"
)

// ParseClozeStyle converts a caller-supplied value into a ClozeStyle.
// An empty value selects ClozeSingle.
func ParseClozeStyle(s string) (ClozeStyle, error) {
	switch ClozeStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClozeSingle:
		return ClozeSingle, nil
	case ClozeMulti:
		return ClozeMulti, nil
	case ClozeQA:
		return ClozeQA, nil
	}
	return "", &RequestError{
		kind:   KindInvalidRequest,
		Field:  "options.clozeStyle",
		Reason: fmt.Sprintf("unsupported cloze style %q", s),
	}
}

// Generation option bounds.
const (
	DefaultCardCount    = 20
	MinCardCount        = 1
	MaxCardCount        = 100
	MaxInstructionRunes = 2000
	MaxMustIncludeTerms = 25
	DefaultDeckTitle    = "Generated Deck"
)

// GenerationOptions tunes what the model is asked to produce.
type GenerationOptions struct {
	CardCount        int        `json:"cardCount,omitempty"`
	ClozeStyle       ClozeStyle `json:"clozeStyle,omitempty"`
	Instruction      string     `json:"instruction,omitempty"`
	MustIncludeTerms []string   `json:"mustIncludeTerms,omitempty"`
}

// Normalize returns a copy of the options with every field brought into range.
// A zero card count means "not supplied" and selects DefaultCardCount.
func (o GenerationOptions) Normalize() GenerationOptions {
	out := GenerationOptions{
		CardCount:   ClampCardCount(o.CardCount),
		ClozeStyle:  o.ClozeStyle,
		Instruction: truncateRunes(strings.TrimSpace(o.Instruction), MaxInstructionRunes),
	}
	if out.ClozeStyle == "" {
		out.ClozeStyle = ClozeSingle
	}

	seen := make(map[string]struct{}, len(o.MustIncludeTerms))
	for _, term := range o.MustIncludeTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.MustIncludeTerms = append(out.MustIncludeTerms, term)
		if len(out.MustIncludeTerms) == MaxMustIncludeTerms {
			break
		}
	}
	return out
}

// ClampCardCount bounds a caller-supplied card count.
func ClampCardCount(n int) int {
	switch {
	case n == 0:
		return DefaultCardCount
	case n < MinCardCount:
		return MinCardCount
	case n > MaxCardCount:
		return MaxCardCount
	default:
		return n
	}
}

// GenerationRequest is the input to the deck pipeline. It is built once per
// inbound request and is not mutated afterwards.
//
// Binary uploads carry their payload in SourceBytes; every other source
// arrives in SourceContent (plain text, base64 or a URL).
type GenerationRequest struct {
	SourceKind    SourceKind
	SourceContent string
	SourceBytes   []byte
	DeckTitle     string
	Options       GenerationOptions
}

// Validate checks the request preconditions: a known source kind, some
// content, and a supported cloze style.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(string(r.SourceKind)) == "" {
		return &RequestError{kind: KindInvalidRequest, Field: "sourceKind", Reason: "sourceKind is required"}
	}
	if _, err := ParseSourceKind(string(r.SourceKind)); err != nil {
		return err
	}
	if strings.TrimSpace(r.SourceContent) == "" && len(r.SourceBytes) == 0 {
		return &RequestError{kind: KindInvalidRequest, Field: "sourceContent", Reason: "sourceContent is required"}
	}
	if _, err := ParseClozeStyle(string(r.Options.ClozeStyle)); err != nil {
		return err
	}
	return nil
}

// Title returns the display title, falling back to DefaultDeckTitle.
func (r GenerationRequest) Title() string {
	if t := strings.TrimSpace(r.DeckTitle); t != "" {
		return t
	}
	return DefaultDeckTitle
}

// RequestError reports a generation request that fails its preconditions.
type RequestError struct {
	kind   ErrorKind
	Field  string
	Reason string
}

// NewRequestError creates a RequestError of kind KindInvalidRequest.
func NewRequestError(field, reason string) *RequestError {
	return &RequestError{kind: KindInvalidRequest, Field: field, Reason: reason}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
}

// Kind implements Kinded.
func (e *RequestError) Kind() ErrorKind { return e.kind }

// Unwrap lets callers match ErrValidation.
func (e *RequestError) Unwrap() error { return ErrValidation }

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// ExtractedDocument is normalized plain text pulled from a source.
// PageCount is set only for sources with discrete pages.
type ExtractedDocument struct {
	Text      string
	PageCount *int
}
