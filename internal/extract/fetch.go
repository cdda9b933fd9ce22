package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/phrazzld/scry-decks/internal/domain"
)

func (e *Extractor) extractURL(ctx context.Context, rawURL string) (domain.ExtractedDocument, error) {
	target, err := parseFetchURL(rawURL)
	if err != nil {
		return domain.ExtractedDocument{}, err
	}

	body, contentType, err := e.fetch(ctx, target)
	if err != nil {
		return domain.ExtractedDocument{}, err
	}

	mediaType := mediaTypeOf(contentType, body)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return extractHTML(bytes.NewReader(body), contentType)
	case "application/pdf":
		return e.extractPDF(body)
	default:
		return domain.ExtractedDocument{}, newError(domain.KindUnsupportedContentType,
			fmt.Sprintf("%s is not supported", describeContentType(mediaType)), nil)
	}
}

func parseFetchURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, newError(domain.KindEmptyInput, "URL is blank", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(domain.KindInvalidRequest, "URL cannot be parsed", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, newError(domain.KindInvalidRequest,
			fmt.Sprintf("URL scheme %q is not allowed; use http or https", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, newError(domain.KindInvalidRequest, "URL has no host", nil)
	}
	return u, nil
}

// fetch GETs target and returns at most MaxFetchBytes of the body together
// with the declared Content-Type.
func (e *Extractor) fetch(ctx context.Context, target *url.URL) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", newError(domain.KindInvalidRequest, "cannot build request for URL", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.1")

	resp, err := e.client.Do(req)
	if err != nil {
		reason := "request failed"
		switch {
		case errors.Is(err, errBlockedAddress):
			reason = "URL resolves to a private or reserved address"
		case errors.Is(err, context.DeadlineExceeded):
			reason = fmt.Sprintf("request timed out after %s", e.cfg.FetchTimeout)
		}
		return nil, "", newError(domain.KindFetchFailed, reason, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := newError(domain.KindFetchFailed, fmt.Sprintf("upstream responded %s", resp.Status), nil)
		fe.Status = resp.StatusCode
		return nil, "", fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxFetchBytes+1))
	if err != nil {
		return nil, "", newError(domain.KindFetchFailed, "reading response body failed", err)
	}
	if int64(len(body)) > e.cfg.MaxFetchBytes {
		return nil, "", newError(domain.KindFetchFailed,
			fmt.Sprintf("response exceeds %d bytes", e.cfg.MaxFetchBytes), nil)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// mediaTypeOf returns the declared media type, sniffing the body only when
// the server declared nothing useful.
func mediaTypeOf(contentType string, body []byte) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}

	sniffed := mimetype.Detect(body)
	switch {
	case sniffed.Is("text/html"):
		return "text/html"
	case sniffed.Is("application/pdf"):
		return "application/pdf"
	}
	mt, _, _ := mime.ParseMediaType(sniffed.String())
	return mt
}
