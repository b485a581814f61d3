package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/askpath/askpath/internal/log"
)

// Orchestrator runs the tiers in order until one produces a Result.
type Orchestrator struct {
	tiers  []Tier
	logger log.Logger
}

// NewOrchestrator wires an ordered tier list. Callers typically pass
// graph, FAQ, then RAG; the last tier should be terminal.
func NewOrchestrator(tiers []Tier, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{tiers: tiers, logger: logger}
}

// Answer resolves a request through the cascade. A tier that errors is
// logged and skipped so a broken store cannot take down the tiers below
// it. If every tier misses the caller gets an unmatched Result rather
// than an error.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	for _, tier := range o.tiers {
		res, err := tier.Attempt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Error("tier failed, falling through",
				"tier", tier.Name(),
				"error", err)
			continue
		}
		if res == nil {
			o.logger.Debug("tier missed", "tier", tier.Name())
			continue
		}
		o.logger.Info("question answered",
			"tier", tier.Name(),
			"success", res.Success,
			"fallback", res.Fallback,
			"elapsed", time.Since(start))
		return res, nil
	}

	o.logger.Warn("no tier produced an answer", "elapsed", time.Since(start))
	return &Result{
		Success: false,
		Message: noAnswerMessage,
	}, nil
}
