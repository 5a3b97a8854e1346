package observability

import (
	"context"

	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "webrana-cms/attachments"
)

// GetTracer returns the tracer for the attachment subsystem.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// OwnerAttributes returns common attributes for an owner.
func OwnerAttributes(owner models.Owner) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("owner.type", string(owner.Type)),
		attribute.Int64("owner.id", int64(owner.ID)),
	}
}

// AttachmentAttributes returns common attributes for an attachment row.
func AttachmentAttributes(att *models.Attachment) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("attachment.id", int64(att.ID)),
		attribute.String("attachment.file_path", att.FilePath),
		attribute.String("attachment.state", string(att.State)),
	}
}

// StartSpan starts an internal span for an attachment operation.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "attachment."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartSweepSpan starts a span for one retention pass.
func StartSweepSpan(ctx context.Context, pass string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "retention."+pass,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddStatusTransition adds a state transition event to a span.
func AddStatusTransition(span trace.Span, id uint, from, to models.AttachmentState) {
	span.AddEvent("state.transition",
		trace.WithAttributes(
			attribute.Int64("attachment.id", int64(id)),
			attribute.String("state.from", string(from)),
			attribute.String("state.to", string(to)),
		),
	)
}

// AddSkipEvent records an item skipped without failing the operation.
func AddSkipEvent(span trace.Span, id uint, reason string) {
	span.AddEvent("skip",
		trace.WithAttributes(
			attribute.Int64("attachment.id", int64(id)),
			attribute.String("skip.reason", reason),
		),
	)
}
