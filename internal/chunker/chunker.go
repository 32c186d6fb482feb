// Package chunker splits document text into overlapping fixed-size chunks.
package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Span is a chunk together with its rune offsets in the source text.
type Span struct {
	Start int
	End   int
	Text  string
}

type Chunker struct {
	size        int
	overlap     int
	layoutAware bool
}

type Option func(*Chunker)

func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithLayoutAware toggles moving chunk ends back to paragraph, line, sentence or
// word boundaries.
func WithLayoutAware(v bool) Option {
	return func(c *Chunker) {
		c.layoutAware = v
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:        DefaultChunkSize,
		overlap:     DefaultChunkOverlap,
		layoutAware: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 10
	}
	return c
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

func (c *Chunker) Split(text string) []string {
	spans := c.Spans(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, s.Text)
	}
	return out
}

// Spans returns the chunks of text in order. Every chunk after the first starts exactly
// Overlap() runes before the end of its predecessor.
func (c *Chunker) Spans(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	var spans []Span
	start := 0
	for {
		end := start + c.size
		if end >= n {
			end = n
		} else if c.layoutAware {
			end = c.boundary(runes, start, end)
		}
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		if end == n {
			return spans
		}
		start = end - c.overlap
	}
}

// boundary searches runes[start:end] backwards for a better place to cut. The cut never
// moves below start+size/2 and always leaves room for the overlap.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	floor := start + c.size/2
	if floor <= start+c.overlap {
		floor = start + c.overlap + 1
	}
	if floor >= end {
		return end
	}
	for _, match := range []func([]rune, int) bool{isParagraphBreak, isLineBreak, isSentenceEnd, isSpace} {
		for i := end; i > floor; i-- {
			if match(runes, i) {
				return i
			}
		}
	}
	return end
}

// isParagraphBreak reports whether a cut at i falls right after a blank line.
func isParagraphBreak(runes []rune, i int) bool {
	return i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n'
}

func isLineBreak(runes []rune, i int) bool {
	return runes[i-1] == '\n'
}

func isSentenceEnd(runes []rune, i int) bool {
	if i < 2 || !unicode.IsSpace(runes[i-1]) {
		return false
	}
	return strings.ContainsRune(".!?。！？", runes[i-2])
}

func isSpace(runes []rune, i int) bool {
	return unicode.IsSpace(runes[i-1])
}

// Join reverses Spans for a chunk sequence produced with the given overlap.
func Join(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			sb.WriteString(ch)
			continue
		}
		r := []rune(ch)
		if overlap < len(r) {
			sb.WriteString(string(r[overlap:]))
		}
	}
	return sb.String()
}
