package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/classdocs/internal/common"
)

// OwnerHeader carries the authenticated requester, set by the fronting
// gateway.
const OwnerHeader = "X-Owner-ID"

// Owner stores the requester identity and request id in the context.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if owner := strings.TrimSpace(r.Header.Get(OwnerHeader)); owner != "" {
			ctx = common.WithOwnerID(ctx, owner)
		}
		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			ctx = common.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SlogFormatter feeds chi's RequestLogger and Recoverer into slog: one
// "http.request" line per request and an "http.panic" line with the stack.
type SlogFormatter struct {
	Logger *slog.Logger
}

var _ chimiddleware.LogFormatter = (*SlogFormatter)(nil)

func (f *SlogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return &slogEntry{
		logger: f.Logger.With(
			"method", r.Method,
			"path", r.URL.Path,
			"req_id", chimiddleware.GetReqID(r.Context()),
		),
	}
}

type slogEntry struct {
	logger *slog.Logger
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.Info("http.request", "status", status, "bytes", bytes, "elapsed_ms", elapsed.Milliseconds())
}

func (e *slogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("http.panic", "panic", v, "stack", string(stack))
}
