package collector

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags that never carry article content.
var strippedTags = []string{
	"script", "style", "noscript", "nav", "header", "footer",
	"aside", "form", "iframe", "svg", "button", "select",
}

// Class/id fragments that mark boilerplate regions (ads, chrome, social).
var boilerplatePattern = regexp.MustCompile(`(?i)\b(ad|ads|advert|banner|sidebar|promo|cookie|popup|modal|social|share|subscribe|newsletter|comment|breadcrumb|menu|navbar|related)\b`)

// Block-level tags that terminate a paragraph during text extraction.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "br": true, "main": true,
}

// Clean strips boilerplate from raw HTML and extracts visible text with
// paragraph boundaries preserved. Returns the page title and the cleaned
// text; both are empty when nothing useful remains.
func Clean(rawHTML string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(strings.Join(strippedTags, ", ")).Remove()
	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if boilerplatePattern.MatchString(class) || boilerplatePattern.MatchString(id) {
			s.Remove()
		}
	})

	// Prefer the main content region when the page marks one.
	root := doc.Selection
	for _, sel := range []string{"main", "article", "[role=main]", "#content", ".content"} {
		if m := doc.Find(sel).First(); m.Length() > 0 {
			root = m
			break
		}
	}

	var paragraphs []string
	for _, node := range root.Nodes {
		paragraphs = append(paragraphs, extractParagraphs(node)...)
	}
	return title, strings.Join(paragraphs, "\n\n")
}

// extractParagraphs walks the node tree collecting visible text, flushing a
// paragraph at each block-element boundary.
func extractParagraphs(root *html.Node) []string {
	var paragraphs []string
	var current strings.Builder

	flush := func() {
		p := collapseWhitespace(current.String())
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		current.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			current.WriteString(" ")
		case html.ElementNode:
			if blockTags[n.Data] {
				flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			flush()
		}
	}
	walk(root)
	flush()
	return paragraphs
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
