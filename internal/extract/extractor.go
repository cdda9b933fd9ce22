package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"golang.org/x/text/unicode/norm"
)

// Config bounds the work the extractor is willing to do.
type Config struct {
	FetchTimeout     time.Duration
	MaxFetchBytes    int64
	MaxDocumentBytes int64
	UserAgent        string
}

// DefaultConfig returns the limits used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:     15 * time.Second,
		MaxFetchBytes:    10_000_000,
		MaxDocumentBytes: 20_000_000,
		UserAgent:        "scry-decks/1.0",
	}
}

// Extractor converts generation sources into ExtractedDocuments.
// It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	client *http.Client
	pdf    PDFBackend
	logger *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithHTTPClient sets the client used for URL sources. The default client
// refuses to connect to loopback, private and link-local addresses.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithPDFBackend replaces the PDF parsing backend.
func WithPDFBackend(b PDFBackend) Option {
	return func(e *Extractor) {
		if b != nil {
			e.pdf = b
		}
	}
}

// New creates an Extractor. Zero-valued limits in cfg fall back to DefaultConfig.
func New(cfg Config, log *slog.Logger, opts ...Option) *Extractor {
	def := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = def.MaxFetchBytes
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = def.MaxDocumentBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Extractor{
		cfg:    cfg,
		client: newPublicClient(),
		pdf:    NewPDFBackend(),
		logger: log.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts a source into normalized text.
//
// content holds plain text, base64 (for PDF and DOCX) or a URL. raw, when
// non-empty, holds an already-decoded binary payload and takes precedence
// over content for PDF and DOCX sources.
func (e *Extractor) Extract(
	ctx context.Context,
	kind domain.SourceKind,
	content string,
	raw []byte,
) (domain.ExtractedDocument, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)
	start := time.Now()

	var (
		doc domain.ExtractedDocument
		err error
	)
	switch kind {
	case domain.SourceText:
		doc, err = extractText(content)
	case domain.SourcePDF:
		var data []byte
		if data, err = e.binaryPayload(content, raw); err == nil {
			doc, err = e.extractPDF(data)
		}
	case domain.SourceDOCX:
		var data []byte
		if data, err = e.binaryPayload(content, raw); err == nil {
			doc, err = extractDOCX(data)
		}
	case domain.SourceURL:
		doc, err = e.extractURL(ctx, content)
	default:
		err = newError(domain.KindUnsupportedSourceKind, fmt.Sprintf("unsupported source kind %q", kind), nil)
	}

	if err != nil {
		log.Debug("extraction failed",
			"source_kind", string(kind),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return domain.ExtractedDocument{}, err
	}

	log.Debug("extraction completed",
		"source_kind", string(kind),
		"text_length", len(doc.Text),
		"duration_ms", time.Since(start).Milliseconds())
	return doc, nil
}

func extractText(content string) (domain.ExtractedDocument, error) {
	text := strings.TrimSpace(norm.NFC.String(strings.ReplaceAll(content, "\r\n", "\n")))
	if text == "" {
		return domain.ExtractedDocument{}, newError(domain.KindEmptyInput, "text source is blank", nil)
	}
	return domain.ExtractedDocument{Text: text}, nil
}

var dataURLPrefix = regexp.MustCompile(`^data:[\w.+-]+/[\w.+-]+;base64,`)

// binaryPayload returns raw when set, otherwise the base64-decoded content.
func (e *Extractor) binaryPayload(content string, raw []byte) ([]byte, error) {
	data := raw
	if len(data) == 0 {
		encoded := dataURLPrefix.ReplaceAllString(strings.TrimSpace(content), "")
		if encoded == "" {
			return nil, newError(domain.KindEmptyInput, "document payload is empty", nil)
		}
		encoded = strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, encoded)

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		}
		if err != nil {
			return nil, newError(domain.KindMalformedDocument, "document payload is not valid base64", err)
		}
		data = decoded
	}

	if len(data) == 0 {
		return nil, newError(domain.KindEmptyInput, "document payload is empty", nil)
	}
	if int64(len(data)) > e.cfg.MaxDocumentBytes {
		return nil, newError(domain.KindMalformedDocument,
			fmt.Sprintf("document exceeds %d bytes", e.cfg.MaxDocumentBytes), nil)
	}
	return data, nil
}

var (
	blankRunRegex   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	newlineRunRegex = regexp.MustCompile(`\n{3,}`)
)

// cleanExtracted normalizes text pulled out of a structured document:
// NFC form, no control characters, single spaces, at most one blank line.
func cleanExtracted(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || r == '\uFFFD' {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRunRegex.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = newlineRunRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
