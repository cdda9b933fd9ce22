package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phrazzld/scry-decks/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// noiseSelector matches elements that never carry article text.
const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, template, button"

// boilerplatePattern matches class or id values used for page chrome.
var boilerplatePattern = regexp.MustCompile(
	`(?i)(^|[\s_-])(cookie|banner|sidebar|comments?|advert|ads?|promo|share|social|related|newsletter|subscribe|menu|breadcrumbs?|popup|modal)($|[\s_-])`)

// minContainerRunes is the paragraph text a container needs before it is
// preferred over the whole body.
const minContainerRunes = 200

var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "dd": true, "div": true,
	"dl": true, "dt": true, "figcaption": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "hr": true, "li": true, "main": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true,
}

// extractHTML decodes r according to contentType and returns the readable
// main text of the page.
func extractHTML(r io.Reader, contentType string) (domain.ExtractedDocument, error) {
	utf8Body, err := charset.NewReader(r, contentType)
	if err != nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "cannot decode HTML charset", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return domain.ExtractedDocument{}, newError(domain.KindMalformedDocument, "cannot parse HTML", err)
	}

	text := cleanExtracted(readableText(doc))
	if text == "" {
		return domain.ExtractedDocument{}, newError(domain.KindNoReadableText, "page has no readable text", nil)
	}
	return domain.ExtractedDocument{Text: text}, nil
}

func readableText(doc *goquery.Document) string {
	doc.Find(noiseSelector).Remove()
	doc.Find("[class], [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "html", "body", "main", "article":
			return false
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return boilerplatePattern.MatchString(class) || boilerplatePattern.MatchString(id)
	}).Remove()

	root := mainContent(doc)
	if root == nil {
		return ""
	}

	var sb strings.Builder
	writeText(&sb, root, false)
	return sb.String()
}

// mainContent picks the node holding the article: an <article>, <main> or
// role=main element when one has text, else the container with the most
// paragraph text, else <body>.
func mainContent(doc *goquery.Document) *html.Node {
	for _, sel := range []string{"article", "main", "[role=main]"} {
		if node := largest(doc.Find(sel)); node != nil {
			return node
		}
	}

	if node := densestParagraphContainer(doc); node != nil {
		return node
	}

	if body := doc.Find("body"); body.Length() > 0 {
		return body.Get(0)
	}
	if len(doc.Nodes) > 0 {
		return doc.Nodes[0]
	}
	return nil
}

func largest(s *goquery.Selection) *html.Node {
	var (
		best     *html.Node
		bestSize int
	)
	s.Each(func(_ int, el *goquery.Selection) {
		size := len(strings.TrimSpace(el.Text()))
		if size > bestSize {
			best, bestSize = el.Get(0), size
		}
	})
	return best
}

func densestParagraphContainer(doc *goquery.Document) *html.Node {
	scores := make(map[*html.Node]int)
	var order []*html.Node

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		parent := p.Parent()
		if parent.Length() == 0 {
			return
		}
		node := parent.Get(0)
		if _, seen := scores[node]; !seen {
			order = append(order, node)
		}
		scores[node] += len([]rune(strings.TrimSpace(p.Text())))
	})

	var (
		best      *html.Node
		bestScore int
	)
	// Document order breaks ties so the result does not depend on map iteration.
	for _, node := range order {
		if scores[node] > bestScore {
			best, bestScore = node, scores[node]
		}
	}
	if bestScore < minContainerRunes {
		return nil
	}
	return best
}

func writeText(sb *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			sb.WriteString(n.Data)
			return
		}
		sb.WriteString(strings.Join(strings.Fields(n.Data), " "))
		if strings.TrimSpace(n.Data) != "" && endsWithSpace(n.Data) {
			sb.WriteByte(' ')
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	var block, cell bool
	if n.Type == html.ElementNode {
		switch n.Data {
		case "br":
			sb.WriteByte('\n')
			return
		case "td", "th":
			cell = true
		case "pre":
			pre = true
		}
		block = blockElements[n.Data]
	}

	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && !pre && startsWithSpace(c.Data) && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		writeText(sb, c, pre)
	}
	switch {
	case block:
		sb.WriteByte('\n')
	case cell:
		sb.WriteByte(' ')
	}
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}

// describeContentType is used in UnsupportedContentType reasons.
func describeContentType(mediaType string) string {
	if mediaType == "" {
		return "unknown content type"
	}
	return fmt.Sprintf("content type %q", mediaType)
}
