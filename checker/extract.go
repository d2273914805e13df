package checker

import (
	"bytes"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"github.com/lukemcguire/mdlinkcheck/urlutil"
)

// bareURLPattern matches URLs written literally in running text.
var bareURLPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Extractor finds HTTP(S) links in Markdown documents.
// It is safe for concurrent use.
type Extractor struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger discards log output.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		md:     goldmark.New(),
		logger: loggerOrDiscard(logger),
	}
}

var defaultExtractor = NewExtractor(nil)

// ExtractLinks returns the sorted, deduplicated HTTP(S) links in content.
func ExtractLinks(content string) []string {
	return defaultExtractor.Extract(content)
}

// Extract parses content as Markdown and returns every http:// or https://
// link it contains, deduplicated and sorted lexicographically.
//
// Link destinations ([label](url), reference links, <url> autolinks and
// <a href> in raw HTML) are kept as written once backslash escapes and
// character references are decoded. Bare URLs in running text have
// trailing sentence punctuation stripped. Code spans, code blocks and image
// alt text are not scanned. Parse failures yield an empty result.
func (e *Extractor) Extract(content string) (links []string) {
	if content == "" {
		return []string{}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("markdown parsing failed", "panic", r)
			links = []string{}
		}
	}()

	source := []byte(content)
	doc := e.md.Parser().Parse(text.NewReader(source))

	seen := make(map[string]struct{})
	add := func(link string) {
		if urlutil.IsHTTPURL(link) {
			seen[link] = struct{}{}
		}
	}

	// Adjacent text nodes are joined before scanning so that emphasis
	// delimiters or escapes cannot split a URL across nodes.
	var run strings.Builder
	flush := func() {
		if run.Len() == 0 {
			return
		}
		for _, match := range bareURLPattern.FindAllString(string(decodeInline([]byte(run.String()))), -1) {
			if cleaned := urlutil.TrimTrailingPunctuation(match); cleaned != "" {
				add(cleaned)
			}
		}
		run.Reset()
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				run.Write(n.Segment.Value(source))
				if n.SoftLineBreak() || n.HardLineBreak() {
					run.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				run.Write(n.Value)
			}
			return ast.WalkContinue, nil
		}

		flush()
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Link:
			add(string(decodeInline(n.Destination)))
		case *ast.AutoLink:
			if n.AutoLinkType == ast.AutoLinkURL {
				add(string(n.URL(source)))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Image, *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			var raw bytes.Buffer
			for i := 0; i < n.Segments.Len(); i++ {
				segment := n.Segments.At(i)
				raw.Write(segment.Value(source))
			}
			for _, href := range extractAnchorHrefs(raw.Bytes()) {
				add(href)
			}
		case *ast.HTMLBlock:
			var raw bytes.Buffer
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				raw.Write(line.Value(source))
			}
			for _, href := range extractAnchorHrefs(raw.Bytes()) {
				add(href)
			}
		}
		return ast.WalkContinue, nil
	})
	flush()
	if err != nil {
		e.logger.Error("markdown walk failed", "error", err)
		return []string{}
	}

	links = make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	slices.Sort(links)
	return links
}

// decodeInline resolves backslash escapes and entity or numeric character
// references, which goldmark leaves in place until rendering.
func decodeInline(value []byte) []byte {
	value = util.UnescapePunctuations(value)
	value = util.ResolveNumericReferences(value)
	return util.ResolveEntityNames(value)
}

// extractAnchorHrefs returns the href attribute of every <a> tag in an
// HTML fragment. Values are trimmed but otherwise kept as written.
func extractAnchorHrefs(fragment []byte) []string {
	tokenizer := html.NewTokenizer(bytes.NewReader(fragment))
	var hrefs []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// End of fragment or malformed markup; either way we are done.
			return hrefs
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, strings.TrimSpace(attr.Val))
					break
				}
			}
		}
	}
}
