package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/comigor/nl2sql-go/internal/logger"
)

// Processor answers one question. Agent implements it.
type Processor interface {
	Process(ctx context.Context, question string) (*Result, error)
}

// Service bounds how many sessions run at once. Sessions never share state,
// so the bound only protects the database pool and the model endpoint.
type Service struct {
	proc Processor
	sem  *semaphore.Weighted
}

// NewService lets at most maxSessions questions run concurrently.
func NewService(proc Processor, maxSessions int) *Service {
	return &Service{proc: proc, sem: semaphore.NewWeighted(int64(max(maxSessions, 1)))}
}

// Process waits for a free slot, then answers question.
func (s *Service) Process(ctx context.Context, question string) (*Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free session: %w", err)
	}
	defer s.sem.Release(1)

	res, err := s.proc.Process(ctx, question)
	if err != nil {
		logger.L.Error("Failed to process question", "error", err)
		return nil, err
	}
	return res, nil
}

// Ask returns only the user-facing answer.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	res, err := s.Process(ctx, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}
