package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultLocalDimension = 384

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localProvider is an offline embedder hashing word unigrams and bigrams into a fixed
// number of buckets. It needs no network access and is stable across processes.
type localProvider struct {
	dimension int
}

func (p *localProvider) Name() string {
	return "local"
}

func (p *localProvider) Embed(_ context.Context, _ string, text string, _ string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		p.add(vec, tok, 1)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (p *localProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func newLocalProvider(args interface{}) (*localProvider, error) {
	cfg := &localConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultLocalDimension
	}
	return &localProvider{dimension: cfg.Dimension}, nil
}

func init() {
	RegisterEmbed("local", func(args interface{}) (IEmbedProvider, error) {
		return newLocalProvider(args)
	})
}
