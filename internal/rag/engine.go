// Package rag answers questions from the documents of a single user.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/index"
	"github.com/xxxsen/nixai/internal/model"
	"go.uber.org/zap"
)

const (
	AnswerEmptyQuestion = "Ask something!"
	AnswerNoDocuments   = "No documents uploaded yet. Please upload some documents first!"
	AnswerFilterMiss    = "Document not found. Check the @filename and try again."
)

var errEmptyAnswer = errors.New("generator returned an empty answer")

type Outcome int

const (
	Answered Outcome = iota
	NoDocuments
	FilterMiss
	EmptyQuestion
)

func (o Outcome) String() string {
	switch o {
	case Answered:
		return "answered"
	case NoDocuments:
		return "no_documents"
	case FilterMiss:
		return "filter_miss"
	case EmptyQuestion:
		return "empty_question"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome Outcome
	Answer  string
	Sources []model.Source
}

type Retriever interface {
	Query(ctx context.Context, userID string, question string, k int, filter string) ([]model.ScoredChunk, error)
}

type Engine struct {
	index    Retriever
	answerer *Answerer
	topK     int
}

func NewEngine(idx Retriever, answerer *Answerer, topK int) *Engine {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	return &Engine{index: idx, answerer: answerer, topK: topK}
}

func (e *Engine) TopK() int {
	return e.topK
}

// Ask parses raw and answers it for userID.
func (e *Engine) Ask(ctx context.Context, userID string, raw string) (*Result, error) {
	q := ParseQuestion(raw)
	if q.Empty() {
		return &Result{Outcome: EmptyQuestion, Answer: AnswerEmptyQuestion, Sources: []model.Source{}}, nil
	}
	return e.Retrieve(ctx, userID, q.Text, e.topK, q.Filter)
}

// Retrieve answers question from the top k chunks of userID. Missing index, empty
// question and filter miss are results, not errors.
func (e *Engine) Retrieve(ctx context.Context, userID string, question string, k int, filter string) (*Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("filter", filter))
	if question == "" {
		return &Result{Outcome: EmptyQuestion, Answer: AnswerEmptyQuestion, Sources: []model.Source{}}, nil
	}
	if k <= 0 {
		k = e.topK
	}
	chunks, err := e.index.Query(ctx, userID, question, k, filter)
	if err != nil {
		if errors.Is(err, index.ErrNoDocuments) {
			return &Result{Outcome: NoDocuments, Answer: AnswerNoDocuments, Sources: []model.Source{}}, nil
		}
		return nil, fmt.Errorf("query index: %w", err)
	}
	if filter != "" && len(chunks) == 0 {
		logger.Info("filter matched no chunks")
		return &Result{Outcome: FilterMiss, Answer: AnswerFilterMiss, Sources: []model.Source{}}, nil
	}
	// An index that exists but holds no chunks still reaches the generator with empty context.
	answer, err := e.answerer.Answer(ctx, BuildPrompt(question, chunks))
	if err != nil {
		return nil, err
	}
	sources := make([]model.Source, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, model.Source{Content: c.Content, Filename: c.Source})
	}
	logger.Debug("question answered", zap.Int("sources", len(sources)))
	return &Result{Outcome: Answered, Answer: answer, Sources: sources}, nil
}
