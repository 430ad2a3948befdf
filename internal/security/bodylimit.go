// Package security carries the request hardening middleware: payload size
// caps and standard response headers.
package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// BodyLimit caps request payload size. Base64 attachments inflate uploads
// by a third, so the cap must leave headroom above the raw file-size limit.
type BodyLimit struct {
	Max int64
}

// Middleware rejects oversized payloads with 413 before the handler runs.
// The body is buffered up to the cap so a lying Content-Length cannot smuggle
// extra bytes past the check.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}

		buf, ok := b.readCapped(w, r)
		if !ok {
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func (b BodyLimit) readCapped(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
	_ = r.Body.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if int64(len(buf)) > b.Max {
		http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return buf, true
}
