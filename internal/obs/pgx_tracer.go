package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxStatementAttr caps the recorded statement; JSONB payload inserts can be
// megabytes and span attributes must stay small.
const maxStatementAttr = 300

type querySpanKey struct{}

// PGXTracer implements pgx.QueryTracer, wrapping every statement in a span.
type PGXTracer struct{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "pgx.query")

	stmt := strings.TrimSpace(data.SQL)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
	}
	if stmt != "" {
		if len(stmt) > maxStatementAttr {
			attrs = append(attrs, attribute.String("db.statement", stmt[:maxStatementAttr]+"..."))
		} else {
			attrs = append(attrs, attribute.String("db.statement", stmt))
		}
		attrs = append(attrs, attribute.String("db.operation", strings.Fields(stmt)[0]))
	}
	span.SetAttributes(attrs...)
	return context.WithValue(ctx, querySpanKey{}, span)
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
	}
	span.End()
}
