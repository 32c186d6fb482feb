package loader

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/nixai/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// loadMarkdown keeps the text of every top level block, separated by blank lines so
// the chunker can cut on paragraph boundaries.
func loadMarkdown(_ context.Context, _ string, data []byte) ([]model.Segment, error) {
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return nil, errNotUTF8
	}
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)
	source := reader.Source()

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		var content string
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			content = blockLines(n, source)
		case *ast.CodeBlock:
			content = blockLines(n, source)
		default:
			content = extractText(node, source)
		}
		if content = strings.TrimSpace(content); content != "" {
			blocks = append(blocks, content)
		}
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return []model.Segment{{Text: strings.Join(blocks, "\n\n")}}, nil
}

func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return sb.String()
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeSpan:
			sb.Write(t.Text(source))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func init() {
	Register(".md", LoaderFunc(loadMarkdown))
	Register(".markdown", LoaderFunc(loadMarkdown))
}
