package router

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/transport"
)

func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log := observability.GetLogger(r.Context())
					log.Error("panic_recovered",
						zap.Any("error", rec),
						zap.String("request_id", middleware.GetReqID(r.Context())),
					)

					transport.WriteError(
						w,
						http.StatusInternalServerError,
						"internal_error",
						"internal server error",
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
