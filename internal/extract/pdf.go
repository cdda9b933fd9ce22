package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// Errors a PDFBackend returns to classify a document it cannot read.
var (
	// ErrPDFEncrypted reports a password-protected document.
	ErrPDFEncrypted = errors.New("pdf is encrypted")

	// ErrPDFMalformed reports a document that is not structurally valid.
	ErrPDFMalformed = errors.New("pdf is malformed")
)

// PDFBackend reads the structure and text of a PDF.
type PDFBackend interface {
	// PageCount validates the document and returns its number of pages.
	PageCount(data []byte) (int, error)

	// PageTexts returns the plain text of each page in page order.
	PageTexts(data []byte) ([]string, error)
}

var pdfHeader = []byte("%PDF-")

func (e *Extractor) extractPDF(data []byte) (domain.ExtractedDocument, error) {
	// The header may be preceded by a little junk; anything else is not a PDF.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfHeader) {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "payload is not a PDF document", nil)
	}

	pages, err := e.pdf.PageCount(data)
	if err != nil {
		return domain.ExtractedDocument{}, classifyPDFError(err)
	}

	texts, err := e.pdf.PageTexts(data)
	if err != nil {
		return domain.ExtractedDocument{}, classifyPDFError(err)
	}

	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = cleanExtracted(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	text := strings.Join(cleaned, "\n\n")
	if text == "" {
		return domain.ExtractedDocument{}, newError(domain.KindNoReadableText,
			"PDF contains no extractable text (it may be a scanned image)", nil)
	}

	if pages == 0 {
		pages = len(texts)
	}
	return domain.ExtractedDocument{Text: text, PageCount: &pages}, nil
}

func classifyPDFError(err error) error {
	if errors.Is(err, ErrPDFEncrypted) {
		return newError(domain.KindEncryptedDocument, "PDF is password protected", err)
	}
	return newError(domain.KindMalformedDocument, "PDF could not be parsed", err)
}

var disableConfigDir sync.Once

// libPDFBackend validates and counts pages with pdfcpu and reads page text
// with ledongthuc/pdf.
type libPDFBackend struct{}

// NewPDFBackend returns the default PDFBackend.
func NewPDFBackend() PDFBackend {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return libPDFBackend{}
}

func (libPDFBackend) PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrPDFMalformed, r)
		}
	}()

	n, err = api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		if looksEncrypted(err) {
			return 0, fmt.Errorf("%w: %v", ErrPDFEncrypted, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrPDFMalformed, err)
	}
	return n, nil
}

func (libPDFBackend) PageTexts(data []byte) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("%w: %v", ErrPDFMalformed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || looksEncrypted(err) {
			return nil, fmt.Errorf("%w: %v", ErrPDFEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPDFMalformed, err)
	}

	total := r.NumPage()
	texts = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrPDFMalformed, i, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func looksEncrypted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}
