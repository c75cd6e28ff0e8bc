package middleware

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"

	"github.com/ritmofit/internal/logger"
)

// responseWriter запоминает, начат ли уже ответ: после паники статус и
// заголовки можно писать только в нетронутый ответ.
type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

// Hijack пробрасывает нижележащий Hijacker: без него апгрейд /ws невозможен.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// RecoverJSON переводит панику обработчика в JSON 500. Оболочка разбирает
// тело любой ошибки как JSON с полем error, поэтому и 500 отдаётся в том же
// формате, что и остальные ошибки агента.
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if err := recover(); err != nil {
				logger.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, err)
				if !wrap.wrote {
					wrap.ResponseWriter.Header().Set("Content-Type", "application/json; charset=utf-8")
					wrap.ResponseWriter.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(wrap.ResponseWriter).Encode(map[string]string{"error": "error interno del agente"})
				}
			}
		}()
		next.ServeHTTP(wrap, r)
	})
}
