package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "status 401", err: &StatusError{Provider: "groq", StatusCode: 401}, want: KindAuth},
		{name: "status 503", err: &StatusError{Provider: "groq", StatusCode: 503}, want: KindConnectivity},
		{name: "invalid api key message", err: errors.New("Invalid API Key provided"), want: KindAuth},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: KindConnectivity},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: KindConnectivity},
		{name: "unavailable provider", err: ErrUnavailable, want: KindConnectivity},
		{name: "other", err: errors.New("model returned garbage"), want: KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestGenerationErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(&GenerationError{Kind: KindOther, Attempts: 3, Err: base})
	require.ErrorIs(t, err, base)
	var ge *GenerationError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, 3, ge.Attempts)
}

func TestLocalEmbedderDeterministic(t *testing.T) {
	p, err := NewEmbedProvider("local", map[string]interface{}{"dimension": 64})
	require.NoError(t, err)
	e := NewEmbedder(p, "hash")
	require.Equal(t, "local:hash", e.ModelName())

	a, err := e.Embed(context.Background(), "Paris is the capital of France", TaskTypeDocument)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "Paris is the capital of France", TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	empty, err := e.Embed(context.Background(), "   ", TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, empty, 64)
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama", req.Model)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" Paris. "}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider("groq", map[string]interface{}{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	out, err := NewGenerator(p, "llama").Generate(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "Paris.", out)
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	p, err := NewProvider("openai", map[string]interface{}{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "q")
	require.Error(t, err)
	require.Equal(t, KindAuth, Classify(err))
}

func TestMissingAPIKeyUnavailable(t *testing.T) {
	p, err := NewProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "q")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUnknownProvider(t *testing.T) {
	_, err := NewProvider("nope", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("", nil)
	require.Error(t, err)
}

func TestGroupGeneratorFallback(t *testing.T) {
	first := &fakeGenerator{err: errors.New("down")}
	second := &fakeGenerator{answer: "ok"}
	g := NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: first}, {Name: "b", Generator: second}})
	out, err := g.Generate(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 1, first.calls)

	last := errors.New("still down")
	g = NewGroupGenerator([]GeneratorEntry{{Name: "a", Generator: first}, {Name: "c", Generator: &fakeGenerator{err: last}}})
	_, err = g.Generate(context.Background(), "q")
	require.ErrorIs(t, err, last)

	require.Nil(t, NewGroupGenerator(nil))
	require.Same(t, second, NewGroupGenerator([]GeneratorEntry{{Generator: second}}))
}

func TestRateLimitEmbedder(t *testing.T) {
	p, err := NewEmbedProvider("local", nil)
	require.NoError(t, err)
	base := NewEmbedder(p, "hash")
	require.Equal(t, base, WrapRateLimitEmbedder(base, 0, 0))

	wrapped := WrapRateLimitEmbedder(base, 1000, 10)
	require.Equal(t, base.ModelName(), wrapped.ModelName())
	vec, err := wrapped.Embed(context.Background(), "hello", TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, vec, defaultLocalDimension)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := WrapRateLimitEmbedder(base, 0.001, 1)
	_, _ = slow.Embed(context.Background(), "drain burst", TaskTypeQuery)
	_, err = slow.Embed(ctx, "hello", TaskTypeQuery)
	require.Error(t, err)
}
