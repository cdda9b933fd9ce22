package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// MaxContextSnippetRunes caps the length of a card's context snippet.
const MaxContextSnippetRunes = 300

// Result is the outcome of a successful Parse.
type Result struct {
	// Cards holds the valid cards in the order the model returned them.
	Cards []domain.GeneratedCard

	// Dropped lists cards that were rejected, by their index in the model output.
	Dropped []DroppedCard
}

// StripFences removes one Markdown code fence wrapping raw, such as
// "```json\n[...]\n```". Text that does not start with a fence is returned
// unchanged. A missing closing fence is tolerated.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return raw
	}

	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	fence := s[:n]
	s = strings.TrimLeft(s[n:], " \t")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}

	s = strings.TrimRightFunc(s, unicode.IsSpace)
	switch {
	case strings.HasSuffix(s, fence):
		s = strings.TrimSuffix(s, fence)
	case strings.HasSuffix(s, "```"):
		s = strings.TrimRight(s, "`")
	}
	return strings.TrimSpace(s)
}

// wireCard mirrors a card as the model writes it. Every field is decoded
// lazily so one bad field rejects (or is ignored on) one card only.
type wireCard struct {
	Front          json.RawMessage `json:"front"`
	Back           json.RawMessage `json:"back"`
	SourcePage     json.RawMessage `json:"source_page"`
	ContextSnippet json.RawMessage `json:"context_snippet"`
}

// Parse turns raw model text into cards for the given cloze style.
//
// The text may be wrapped in a Markdown fence. Invalid JSON is a
// ValidationError of kind MalformedJSON and a top-level value other than an
// array is UnexpectedShape. Individual cards that break the card invariants
// are dropped and reported in Result.Dropped; if none survive the error kind
// is NoUsableCards. The number of cards is not checked against the request.
func Parse(raw string, style domain.ClozeStyle) (Result, error) {
	body := strings.TrimSpace(StripFences(raw))
	if body == "" {
		return Result{}, newValidationError(domain.KindMalformedJSON, raw, fmt.Errorf("output is empty"))
	}

	var top json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return Result{}, newValidationError(domain.KindMalformedJSON, raw, err)
	}
	if top = bytes.TrimSpace(top); len(top) == 0 || top[0] != '[' {
		return Result{}, newValidationError(domain.KindUnexpectedShape, raw,
			fmt.Errorf("top-level value is %s", jsonTypeName(top)))
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(top, &elements); err != nil {
		return Result{}, newValidationError(domain.KindMalformedJSON, raw, err)
	}

	res := Result{Cards: make([]domain.GeneratedCard, 0, len(elements))}
	for i, el := range elements {
		card, err := parseCard(el, style)
		if err != nil {
			res.Dropped = append(res.Dropped, DroppedCard{Index: i, Reason: err.Error()})
			continue
		}
		res.Cards = append(res.Cards, card)
	}

	if len(res.Cards) == 0 {
		verr := newValidationError(domain.KindNoUsableCards, raw, nil)
		verr.Dropped = res.Dropped
		return Result{}, verr
	}
	return res, nil
}

func parseCard(el json.RawMessage, style domain.ClozeStyle) (domain.GeneratedCard, error) {
	el = bytes.TrimSpace(el)
	if len(el) == 0 || el[0] != '{' {
		return domain.GeneratedCard{}, fmt.Errorf("card is %s, not an object", jsonTypeName(el))
	}

	var w wireCard
	if err := json.Unmarshal(el, &w); err != nil {
		return domain.GeneratedCard{}, fmt.Errorf("card cannot be decoded: %w", err)
	}

	var front string
	if len(w.Front) == 0 || json.Unmarshal(w.Front, &front) != nil {
		return domain.GeneratedCard{}, fmt.Errorf("%w: front must be a string", domain.ErrInvalidCardContent)
	}

	var back domain.CardBack
	if len(w.Back) == 0 || isJSONNull(w.Back) {
		return domain.GeneratedCard{}, fmt.Errorf("%w: back is missing", domain.ErrInvalidCardContent)
	}
	if err := json.Unmarshal(w.Back, &back); err != nil {
		return domain.GeneratedCard{}, err
	}

	card := domain.GeneratedCard{
		Front:          strings.TrimSpace(front),
		Back:           trimBack(back),
		SourcePage:     parseSourcePage(w.SourcePage),
		ContextSnippet: parseSnippet(w.ContextSnippet),
	}
	if err := card.Validate(style); err != nil {
		return domain.GeneratedCard{}, err
	}
	return card, nil
}

func trimBack(b domain.CardBack) domain.CardBack {
	if !b.IsList() {
		return domain.TextBack(strings.TrimSpace(b.Text()))
	}
	parts := b.Parts()
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return domain.ListBack(parts...)
}

// parseSourcePage accepts a positive integer given as a JSON number or a
// numeric string. Anything else is treated as absent.
func parseSourcePage(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isJSONNull(raw) {
		return nil
	}

	var text string
	if raw[0] == '"' {
		if json.Unmarshal(raw, &text) != nil {
			return nil
		}
	} else {
		text = string(raw)
	}

	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		return positive(n)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == math.Trunc(f) && f <= math.MaxInt32 {
		return positive(int(f))
	}
	return nil
}

func positive(n int) *int {
	if n < 1 {
		return nil
	}
	return &n
}

func parseSnippet(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxContextSnippetRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:MaxContextSnippetRunes]))
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func jsonTypeName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
