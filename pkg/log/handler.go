package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrFmtHandler decorates records that carry an error attribute with the
// error's concrete type, any hints attached with errors.WithHint and the
// stacktrace recorded by cockroachdb/errors.
type ErrFmtHandler struct {
	next slog.Handler
}

// WrapByErrFmtHandler wraps next with error decoration.
func WrapByErrFmtHandler(next slog.Handler) slog.Handler {
	return &ErrFmtHandler{next: next}
}

func (h *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == ErrAttrKey {
			found, _ = attr.Value.Any().(error)
			return false
		}
		return true
	})
	if found != nil {
		r.AddAttrs(errorAttrs(found)...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{next: h.next.WithGroup(g)}
}

func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String(ErrorTypeKey, errorType(err))}
	if hint := errors.FlattenHints(err); hint != "" {
		attrs = append(attrs, slog.String(SuggestionKey, hint))
	}
	if st := extractStacktrace(err); st != "" {
		attrs = append(attrs, slog.String(StacktraceAttrKey, st))
	}
	return attrs
}

// errorType reports the innermost non-wrapper type, e.g. "*errors.ConfigurationError".
func errorType(err error) string {
	cause := errors.UnwrapAll(err)
	return strings.TrimPrefix(fmt.Sprintf("%T", cause), "*")
}

func extractStacktrace(err error) string {
	details := errors.GetSafeDetails(err).SafeDetails
	if len(details) == 0 {
		return ""
	}
	return details[0]
}
