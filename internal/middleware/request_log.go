package middleware

import (
	"net/http"
	"time"

	"github.com/ritmofit/internal/logger"
)

// RequestLog пишет method, path и длительность каждого запроса через
// асинхронный логгер. /health не логируется: оболочка опрашивает его
// постоянно, в логе от него один шум.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		defer logger.DeferLogDuration(r.Method+" "+r.URL.Path, start)()
		next.ServeHTTP(w, r)
	})
}
