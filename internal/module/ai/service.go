package ai

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/billing/quota"
)

// Upstream is the model API behind the proxy.
type Upstream interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Service proxies chat completions, charging one aiCalls unit per request.
type Service struct {
	upstream Upstream
	gate     *quota.Gate
	billing  billing.ServiceInterface
	logger   *zap.Logger
}

// NewService creates a new AI proxy service.
func NewService(upstream Upstream, gate *quota.Gate, billingSvc billing.ServiceInterface, logger *zap.Logger) *Service {
	return &Service{
		upstream: upstream,
		gate:     gate,
		billing:  billingSvc,
		logger:   logger,
	}
}

// Chat charges the caller's aiCalls quota and forwards the request
// upstream. When the quota rejects, the returned result carries the
// rejection detail and no upstream call is made.
//
// The unit is charged before the upstream call, so an upstream failure
// after admission still consumes quota. Refunding on failure would reopen
// the check-then-act race the atomic gate exists to close.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, req *ChatRequest) (*ChatResponse, *quota.Result, error) {
	plan, err := s.billing.PlanFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.gate.Use(ctx, userID, plan, billing.ResourceAICalls, 1)
	if err != nil {
		return nil, nil, err
	}
	if !res.Allowed {
		return nil, res, nil
	}

	resp, err := s.upstream.Chat(ctx, req)
	if err != nil {
		s.logger.Warn("upstream chat failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, res, err
	}

	s.logger.Debug("chat proxied",
		zap.String("user_id", userID.String()),
		zap.String("model", resp.Model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp, res, nil
}
