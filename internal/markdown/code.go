package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// span is a half-open byte range [start, stop) of the source.
type span struct {
	start, stop int
}

// codeRanges returns the byte ranges of code blocks and code spans in src.
func codeRanges(src []byte) []span {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var spans []span
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if s, ok := linesSpan(node); ok {
				spans = append(spans, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			if s, ok := childrenSpan(node); ok {
				spans = append(spans, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return spans
}

func linesSpan(n ast.Node) (span, bool) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return span{}, false
	}
	return span{start: lines.At(0).Start, stop: lines.At(lines.Len() - 1).Stop}, true
}

func childrenSpan(n ast.Node) (span, bool) {
	s := span{start: -1}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if s.start < 0 || t.Segment.Start < s.start {
			s.start = t.Segment.Start
		}
		if t.Segment.Stop > s.stop {
			s.stop = t.Segment.Stop
		}
	}
	return s, s.start >= 0
}

func inside(spans []span, off int) bool {
	for _, s := range spans {
		if off >= s.start && off < s.stop {
			return true
		}
	}
	return false
}
