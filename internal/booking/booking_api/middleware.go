package booking_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"ms-booking/internal/logger"
)

// RequestLogger logs method, path, status and duration of every request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := r.URL.Path
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				path = fmt.Sprintf("%s [%s]", path, reqID)
			}
			log.LogAPI(r.Method, path, strconv.Itoa(status), time.Since(start).String())
		})
	}
}
