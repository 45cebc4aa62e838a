// Package pagetext turns rendered page HTML into a short markdown excerpt
// that can be embedded in an AI prompt.
package pagetext

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxChars bounds the excerpt when Extract is called with maxChars <= 0.
const DefaultMaxChars = 4000

// Excerpt is the prompt-ready view of a page.
type Excerpt struct {
	Title     string
	Markdown  string
	Truncated bool
}

// Extractor converts HTML to markdown. It is safe for concurrent use.
type Extractor struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New builds an Extractor.
func New() *Extractor {
	p := bluemonday.UGCPolicy()
	p.AllowElements("main", "article", "section", "header", "footer", "nav")
	return &Extractor{
		policy: p,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// Extract parses rawHTML, sanitizes it and returns at most maxChars runes
// of markdown. The cut happens on a line boundary when one is close.
func (e *Extractor) Extract(rawHTML, sourceURL string, maxChars int) (*Excerpt, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, errors.New("pagetext: empty document")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	ex := &Excerpt{Title: findTitle(doc)}

	clean := e.policy.Sanitize(rawHTML)
	var md string
	if sourceURL != "" {
		md, err = e.conv.ConvertString(clean, converter.WithDomain(sourceURL))
	} else {
		md, err = e.conv.ConvertString(clean)
	}
	if err != nil {
		return nil, err
	}
	md = strings.TrimSpace(blankLines.ReplaceAllString(md, "\n\n"))

	ex.Markdown, ex.Truncated = truncate(md, maxChars)
	return ex, nil
}

func truncate(s string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	runes := []rune(s)
	cut := string(runes[:maxChars])
	// Prefer a line break in the last fifth of the window.
	if i := strings.LastIndexByte(cut, '\n'); i > len(cut)*4/5 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut), true
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.Join(strings.Fields(sb.String()), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
