package rag

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/ai"
	"github.com/xxxsen/nixai/internal/retry"
	"go.uber.org/zap"
)

// Answerer calls the generator under a retry policy. It is the only place that
// retries generation.
type Answerer struct {
	gen    ai.IGenerator
	policy retry.Policy
}

func NewAnswerer(gen ai.IGenerator, policy retry.Policy) *Answerer {
	return &Answerer{gen: gen, policy: policy}
}

// Answer returns the generated text. A response that carries text is accepted even
// when the generator also reports an error. After the policy gives up the last error
// is returned as *ai.GenerationError.
func (a *Answerer) Answer(ctx context.Context, prompt string) (string, error) {
	logger := logutil.GetLogger(ctx)
	var answer string
	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		out, err := a.gen.Generate(ctx, prompt)
		if strings.TrimSpace(out) != "" {
			if err != nil {
				logger.Warn("generator returned text with an error, keeping the text", zap.Error(err))
			}
			answer = out
			return nil
		}
		if err == nil {
			return errEmptyAnswer
		}
		logger.Warn("generation attempt failed", zap.Error(err))
		return err
	})
	if err != nil {
		return "", &ai.GenerationError{Kind: ai.Classify(err), Attempts: attempts, Err: err}
	}
	return answer, nil
}
