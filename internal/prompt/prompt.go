package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// ErrEmptyText is returned when Build is given blank source text.
var ErrEmptyText = errors.New("source text cannot be empty")

// Delimiters fence the source text inside the prompt. Occurrences inside the
// source itself are neutralized so the text cannot close its own fence.
const (
	OpenDelimiter  = "<<<SOURCE_TEXT>>>"
	CloseDelimiter = "<<<END_SOURCE_TEXT>>>"
)

//go:embed templates/flashcards.tmpl
var templateFS embed.FS

var flashcardTemplate = template.Must(
	template.New("flashcards.tmpl").Option("missingkey=error").ParseFS(templateFS, "templates/flashcards.tmpl"))

// templateData is the data passed to the flashcard template.
type templateData struct {
	CardCount        int
	Style            string
	Instruction      string
	MustIncludeTerms []string
	ExampleFront     string
	ExampleBack      string
	OpenDelimiter    string
	CloseDelimiter   string
	Text             string
}

// Build renders the generation prompt for text under opts. Options are
// normalized first, so the caller's card count is clamped and the cloze style
// defaulted. The result depends only on its inputs.
func Build(text string, opts domain.GenerationOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	opts = opts.Normalize()

	front, back := schemaExample(opts.ClozeStyle)
	data := templateData{
		CardCount:        opts.CardCount,
		Style:            string(opts.ClozeStyle),
		Instruction:      opts.Instruction,
		MustIncludeTerms: opts.MustIncludeTerms,
		ExampleFront:     front,
		ExampleBack:      back,
		OpenDelimiter:    OpenDelimiter,
		CloseDelimiter:   CloseDelimiter,
		Text:             neutralizeDelimiters(strings.TrimSpace(text)),
	}

	var buf bytes.Buffer
	if err := flashcardTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// schemaExample returns the JSON-encoded front and back placeholders shown in
// the output schema for a style.
func schemaExample(style domain.ClozeStyle) (front, back string) {
	switch style {
	case domain.ClozeMulti:
		return strconv.Quote("<a sentence from the source with several key spans replaced by ____>"),
			`["<first removed span>", "<second removed span>"]`
	case domain.ClozeQA:
		return strconv.Quote("<a clear question about a key fact>"),
			strconv.Quote("<the direct answer>")
	default:
		return strconv.Quote("<a sentence from the source with one key span replaced by ____>"),
			strconv.Quote("<the exact removed span>")
	}
}

var delimiterReplacer = strings.NewReplacer(
	OpenDelimiter, "<< <SOURCE_TEXT> >>",
	CloseDelimiter, "<< <END_SOURCE_TEXT> >>",
)

func neutralizeDelimiters(s string) string {
	return delimiterReplacer.Replace(s)
}
