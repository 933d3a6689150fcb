// Package oteltrace traces agent message handling with OpenTelemetry.
package oteltrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trickstertwo/xagent"
)

// TracerName is the instrumentation scope used when no tracer is supplied.
const TracerName = "github.com/trickstertwo/xagent"

// TracingMiddleware opens one span per handled message. Install it per agent
// with xagent.WithMiddleware. A nil tracer uses the global provider.
func TracingMiddleware(tracer trace.Tracer) xagent.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return func(next xagent.Handler) xagent.Handler {
		return func(ctx context.Context, msg xagent.Message) error {
			attrs := []attribute.KeyValue{
				attribute.String("message.type", msg.Type()),
				attribute.String("message.source", msg.Source()),
				attribute.String("message.target", msg.Target()),
				attribute.String("message.status", msg.Status()),
				attribute.Bool("message.control", msg.IsControl()),
			}
			if a, ok := xagent.AgentFromContext(ctx); ok {
				attrs = append(attrs,
					attribute.String("agent.name", a.Name()),
					attribute.Int("agent.id", a.ID()),
					attribute.String("agent.state", a.State().String()),
				)
			}
			if msg.IsControl() {
				attrs = append(attrs, attribute.String("command", xagent.ParseCommand(msg).Name))
			}

			ctx, span := tracer.Start(ctx, "xagent.handle "+msg.Type(),
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := next(ctx, msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			span.SetStatus(codes.Ok, "")
			return nil
		}
	}
}
