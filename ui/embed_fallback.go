//go:build !ui_embed

package ui

import (
	"net/http"
)

// Handler returns an http.Handler serving the matrix control page
// rendered from snapshot on every request, when no built frontend has
// been embedded via the ui_embed build tag. It talks to
// /bring_input_forward, /bring_input_backward, and /connect directly
// and recognises no other target.
func Handler(snapshot func() MatrixView) (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = RenderMatrix(w, snapshot())
	}), nil
}
