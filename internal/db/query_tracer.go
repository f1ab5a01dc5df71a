package db

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

type spanKey struct{}

// queryTracer records every statement issued inside a traced request as a
// db.query child span.
type queryTracer struct {
	system string
}

func newQueryTracer() *queryTracer {
	return &queryTracer{system: "postgresql"}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if sentry.SpanFromContext(ctx) == nil {
		return ctx
	}

	statement := compactSQL(data.SQL)
	span := sentry.StartSpan(
		ctx,
		"db.query",
		sentry.WithDescription(statement),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	span.SetData("db.system", t.system)
	if op := statementVerb(statement); op != "" {
		span.SetData("db.operation", op)
	}
	if table := statementTable(statement); table != "" {
		span.SetData("db.sql.table", table)
	}

	return context.WithValue(span.Context(), spanKey{}, span)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, _ := ctx.Value(spanKey{}).(*sentry.Span)
	if span == nil {
		return
	}
	defer span.Finish()

	if data.Err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("db.error", data.Err.Error())
		return
	}
	span.Status = sentry.SpanStatusOK
	if n := data.CommandTag.RowsAffected(); n >= 0 {
		span.SetData("db.rows_affected", n)
	}
}

// compactSQL collapses whitespace and truncates long statements for span descriptions.
func compactSQL(sql string) string {
	compact := strings.Join(strings.Fields(sql), " ")
	if compact == "" {
		return "sql.query"
	}
	const maxLen = 512
	if len(compact) > maxLen {
		return compact[:maxLen]
	}
	return compact
}

// statementVerb returns the leading keyword, looking past a WITH clause to
// the statement the CTE feeds.
func statementVerb(sql string) string {
	tokens := strings.Fields(sql)
	if len(tokens) == 0 {
		return ""
	}
	first := strings.ToUpper(tokens[0])
	if first != "WITH" {
		return first
	}

	depth := 0
	for _, token := range tokens[1:] {
		depth += strings.Count(token, "(") - strings.Count(token, ")")
		if depth != 0 {
			continue
		}
		switch upper := strings.ToUpper(token); upper {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return upper
		}
	}
	return first
}

// statementTable returns the table the statement primarily targets.
func statementTable(sql string) string {
	tokens := strings.Fields(sql)
	verb := statementVerb(sql)
	marker := ""
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		marker = "UPDATE"
	default:
		return ""
	}

	for i := 0; i < len(tokens)-1; i++ {
		if !strings.EqualFold(tokens[i], marker) {
			continue
		}
		if table := strings.Trim(tokens[i+1], "(),;"); table != "" {
			return table
		}
	}
	return ""
}
