package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/phrazzld/scry-decks/internal/domain"
)

const docxDocumentPart = "word/document.xml"

// maxDocxPartBytes caps the decompressed size of the main document part.
const maxDocxPartBytes = 50 << 20

func extractDOCX(data []byte) (domain.ExtractedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "payload is not a DOCX archive", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "archive has no "+docxDocumentPart, nil)
	}

	rc, err := part.Open()
	if err != nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "cannot open "+docxDocumentPart, err)
	}
	defer func() { _ = rc.Close() }()

	text, err := docxText(io.LimitReader(rc, maxDocxPartBytes))
	if err != nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "cannot parse "+docxDocumentPart, err)
	}

	text = cleanExtracted(text)
	if text == "" {
		return domain.ExtractedDocument{}, newError(domain.KindNoReadableText, "DOCX contains no text", nil)
	}
	return domain.ExtractedDocument{Text: text}, nil
}

// docxText streams WordprocessingML and keeps only run text, emitting a
// newline per paragraph. Styling, fields and drawings are ignored.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
