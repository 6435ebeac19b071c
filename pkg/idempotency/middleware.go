package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const HeaderKey = "Idempotency-Key"

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through; a key whose first request is
// still running answers 409. Responses with status >= 500 are not kept so the
// client may retry them. scope namespaces keys per caller.
func (s *Store) Middleware(log *slog.Logger, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			base := "idem:http:" + scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + key
			ctx := r.Context()

			acquired, err := s.rdb.SetNX(ctx, base+":lock", "1", s.ttl).Result()
			if err != nil {
				log.Warn("idempotency lock failed, serving without it", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				raw, err := s.rdb.Get(ctx, base+":resp").Bytes()
				if errors.Is(err, redis.Nil) {
					http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
					return
				}
				if err != nil {
					http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
					return
				}
				var cached cachedResponse
				if err := json.Unmarshal(raw, &cached); err != nil {
					http.Error(w, "corrupt idempotency record", http.StatusInternalServerError)
					return
				}
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			if rec.status >= http.StatusInternalServerError {
				_ = s.rdb.Del(ctx, base+":lock").Err()
				return
			}
			raw, _ := json.Marshal(cachedResponse{
				Status:      rec.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := s.rdb.Set(ctx, base+":resp", raw, s.ttl).Err(); err != nil {
				log.Warn("idempotency response not stored", "err", err)
			}
		})
	}
}
