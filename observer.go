package xagent

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits Events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("mailbox", e.Mailbox),
		xlog.Str("agent", e.Agent),
		xlog.Str("message_type", e.MessageType),
	)
	switch e.Type {
	case Error, Rejected, TickFailed:
		ev.Warn().Err(e.Err).Msg("xagent event")
	case StateChanged:
		ev.Debug().Str("from", e.From.String()).Str("to", e.To.String()).Msg("xagent event")
	case CommandDone:
		ev.Debug().Str("command", e.Command).Msg("xagent event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("xagent event")
	}
}
