package xagent

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xagent (prevents collisions).
type ctxKey string

const (
	agentCtxKey  ctxKey = "xagent:agent"
	loggerCtxKey ctxKey = "xagent:logger"
	clockCtxKey  ctxKey = "xagent:clock"
)

func injectAgent(ctx context.Context, a *Agent) context.Context {
	if a == nil {
		return ctx
	}
	return context.WithValue(ctx, agentCtxKey, a)
}

// AgentFromContext retrieves the agent whose tick loop is invoking a Behavior hook.
func AgentFromContext(ctx context.Context) (*Agent, bool) {
	if v := ctx.Value(agentCtxKey); v != nil {
		if a, ok := v.(*Agent); ok && a != nil {
			return a, true
		}
	}
	return nil, false
}

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext returns the agent-scoped logger injected by the tick loop.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

// InjectAll is a convenience helper to inject all standard dependencies.
func InjectAll(ctx context.Context, a *Agent, logger *xlog.Logger, clock xclock.Clock) context.Context {
	ctx = injectAgent(ctx, a)
	ctx = injectLogger(ctx, logger)
	ctx = injectClock(ctx, clock)
	return ctx
}
