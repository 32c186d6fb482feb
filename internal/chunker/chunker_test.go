package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func sampleText() string {
	var sb strings.Builder
	paragraphs := []string{
		"Machine learning is a subset of artificial intelligence. It studies algorithms that improve with experience.",
		"Deep learning is a type of machine learning using neural networks! Layers learn increasingly abstract features.",
		"Python, PyTorch, and TensorFlow are popular ML frameworks? Most practitioners pick one and stay with it.",
		"Overfitting occurs when a model learns noise instead of patterns.\nRegularisation and more data both help.",
	}
	for i := 0; i < 12; i++ {
		sb.WriteString(paragraphs[i%len(paragraphs)])
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestSpansFixedPolicy(t *testing.T) {
	c := New(WithLayoutAware(false))
	tests := []struct {
		name   string
		length int
		want   [][2]int
	}{
		{name: "empty", length: 0, want: nil},
		{name: "shorter than one chunk", length: 120, want: [][2]int{{0, 120}}},
		{name: "exactly one chunk", length: 500, want: [][2]int{{0, 500}}},
		{name: "two chunks", length: 900, want: [][2]int{{0, 500}, {450, 900}}},
		{name: "clipped tail", length: 951, want: [][2]int{{0, 500}, {450, 950}, {900, 951}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := c.Spans(strings.Repeat("a", tt.length))
			require.Len(t, spans, len(tt.want))
			for i, s := range spans {
				require.Equal(t, tt.want[i][0], s.Start)
				require.Equal(t, tt.want[i][1], s.End)
				require.Equal(t, s.End-s.Start, utf8.RuneCountInString(s.Text))
			}
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := New()
	text := sampleText()
	first := c.Split(text)
	second := c.Split(text)
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}

func TestSplitReconstructsText(t *testing.T) {
	text := sampleText()
	for _, layout := range []bool{true, false} {
		c := New(WithLayoutAware(layout))
		chunks := c.Split(text)
		for _, ch := range chunks {
			require.LessOrEqual(t, utf8.RuneCountInString(ch), c.Size())
		}
		require.Equal(t, text, Join(chunks, c.Overlap()))
	}
}

func TestSplitPrefersBoundaries(t *testing.T) {
	c := New()
	spans := c.Spans(sampleText())
	require.Greater(t, len(spans), 2)
	for _, s := range spans[:len(spans)-1] {
		last := []rune(s.Text)
		require.Contains(t, " \n", string(last[len(last)-1]))
		require.GreaterOrEqual(t, s.End-s.Start, c.Size()/2)
	}
}

func TestSplitMultibyteText(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(2), WithLayoutAware(false))
	text := strings.Repeat("机器学习", 7)
	chunks := c.Split(text)
	require.Len(t, chunks, 4)
	require.Equal(t, text, Join(chunks, 2))
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(100))
	require.Equal(t, 10, c.Overlap())
}
