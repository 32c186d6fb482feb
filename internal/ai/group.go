package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type groupGenerator struct {
	items []GeneratorEntry
}

// NewGroupGenerator tries each generator in order and returns the first answer.
// Embedders have no group counterpart: every vector of a tenant index must come from
// the same model.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	valid := make([]GeneratorEntry, 0, len(items))
	for _, item := range items {
		if item.Generator != nil {
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	if len(valid) == 1 {
		return valid[0].Generator
	}
	return &groupGenerator{items: valid}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for i, item := range g.items {
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil || res != "" {
			return res, err
		}
		errs = append(errs, err)
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	// the last error decides how the failure is classified
	return "", errs[len(errs)-1]
}

type timeoutGenerator struct {
	next    IGenerator
	timeout time.Duration
}

// WrapTimeoutGenerator bounds every call of next by timeout.
func WrapTimeoutGenerator(next IGenerator, timeout time.Duration) IGenerator {
	if next == nil || timeout <= 0 {
		return next
	}
	return &timeoutGenerator{next: next, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, prompt)
}
