package middlewares

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// statusRecorder captura el status code y los bytes escritos.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Unwrap permite a http.ResponseController llegar al writer original.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// WithLogging inyecta un logger scoped (request_id, method, path) en el
// contexto y registra una línea por request al terminar. El user id se agrega
// si el extractor ya corrió más adentro de la cadena (ver principalHolder).
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := w.Header().Get("X-Request-ID")
			if requestID == "" {
				requestID = GetRequestID(r.Context())
			}

			reqLog := logger.L().With(
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)

			holder := &principalHolder{}
			ctx := logger.ToContext(r.Context(), reqLog)
			ctx = withPrincipalHolder(ctx, holder)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := []zap.Field{
				logger.Status(rec.status),
				logger.Bytes(rec.bytes),
				logger.DurationMs(time.Since(start).Milliseconds()),
			}
			fields = append(fields, principalFields(holder.principal)...)

			switch {
			case rec.status >= 500:
				reqLog.Error("request failed", fields...)
			case rec.status >= 400:
				reqLog.Warn("request completed with client error", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
		})
	}
}

// principalFields identifica al principal en los logs; anónimo no agrega nada.
func principalFields(p types.Principal) []zap.Field {
	switch {
	case p.IsUser():
		return []zap.Field{logger.UserID(p.UserID.String()), logger.TokenKind(string(p.TokenKind))}
	case p.IsService():
		return []zap.Field{logger.Principal("service:" + p.ServiceName)}
	}
	return nil
}
