package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/nixai/internal/model"
)

func TestLoadText(t *testing.T) {
	segs, err := Load(context.Background(), "notes.TXT", strings.NewReader("\xEF\xBB\xBFParis is the capital of France."))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, "Paris is the capital of France.", segs[0].Text)
}

func TestLoadEmptyText(t *testing.T) {
	segs, err := Load(context.Background(), "empty.txt", strings.NewReader("  \n"))
	require.NoError(t, err)
	require.Empty(t, segs)
}

func TestLoadInvalidUTF8(t *testing.T) {
	_, err := Load(context.Background(), "bad.txt", strings.NewReader("\xff\xfe\xfd"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, "bad.txt", le.Path)
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load(context.Background(), "image.png", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnsupported)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.False(t, Supported("image.png"))
	require.True(t, Supported("a.pdf"))
	require.Equal(t, []string{".markdown", ".md", ".pdf", ".txt"}, Extensions())
}

func TestLoadPDFRejectsNonPDF(t *testing.T) {
	_, err := Load(context.Background(), "fake.pdf", strings.NewReader("just some text"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.ErrorIs(t, err, errNotPDF)
}

func TestLoadPDFCorrupt(t *testing.T) {
	_, err := Load(context.Background(), "broken.pdf", strings.NewReader("%PDF-1.4\nthis is not really a pdf"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
}

func TestLoadMarkdown(t *testing.T) {
	src := "# Geography\n\nParis is the **capital** of France.\n\n- Lyon\n- Marseille\n\n```\ncode line\n```\n"
	segs, err := Load(context.Background(), "geo.md", strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, "Geography\n\nParis is the capital of France.\n\nLyon\nMarseille\n\ncode line", segs[0].Text)
}

func TestRegisterCustomLoader(t *testing.T) {
	calls := 0
	Register("CSV", LoaderFunc(func(ctx context.Context, name string, data []byte) ([]model.Segment, error) {
		calls++
		return nil, errors.New("nope")
	}))
	_, err := Load(context.Background(), "x.csv", strings.NewReader("a,b"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.Equal(t, 1, calls)
	mu.Lock()
	delete(registry, ".csv")
	mu.Unlock()
}
