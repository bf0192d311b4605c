package llm

import (
	"context"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
)

// GuardedProvider runs every stream through a circuit breaker so a failing
// upstream is not hammered by each chat request.
type GuardedProvider struct {
	provider Provider
	breaker  *circuitbreaker.CircuitBreaker
}

func NewGuardedProvider(provider Provider, breaker *circuitbreaker.CircuitBreaker) *GuardedProvider {
	return &GuardedProvider{provider: provider, breaker: breaker}
}

func (g *GuardedProvider) Name() string {
	return g.provider.Name()
}

func (g *GuardedProvider) Stream(ctx context.Context, userMessage string, chatCtx ChatContext, emit EmitFunc) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		err := g.provider.Stream(ctx, userMessage, chatCtx, emit)
		if err != nil && ctx.Err() != nil {
			// the caller went away, the upstream is not at fault
			return ctx.Err()
		}
		return err
	})
}

func (g *GuardedProvider) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}
