package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/history"
	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/rag"
	"go.uber.org/zap"
)

type QAService struct {
	engine  *rag.Engine
	history history.Log
	now     func() time.Time
}

func NewQAService(engine *rag.Engine, log history.Log) *QAService {
	return &QAService{engine: engine, history: log, now: time.Now}
}

// Ask answers raw for userID. Only answered questions are written to the history;
// a failing history write is logged and does not fail the answer.
func (s *QAService) Ask(ctx context.Context, userID, raw string) (*rag.Result, error) {
	res, err := s.engine.Ask(ctx, userID, raw)
	if err != nil {
		return nil, err
	}
	if res.Outcome != rag.Answered || s.history == nil {
		return res, nil
	}
	entry := model.ChatEntry{
		Question:  raw,
		Answer:    res.Answer,
		Sources:   res.Sources,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.history.Append(ctx, userID, entry); err != nil {
		logutil.GetLogger(ctx).Error("append chat history failed", zap.String("user_id", userID), zap.Error(err))
	}
	return res, nil
}

func (s *QAService) History(ctx context.Context, userID string) ([]model.ChatEntry, error) {
	return s.history.Read(ctx, userID)
}
