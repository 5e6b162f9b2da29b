// Package website serves the embedded login and tool pages.
package website

import (
	"embed"
	"io/fs"
	"net/http"
)

// LoginPath is where unauthenticated page requests are redirected.
const LoginPath = "/login.html"

//go:embed static
var staticFS embed.FS

// Register adds the page routes to mux. The index page is wrapped with
// protect so only signed-in users reach the tool.
func Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("GET "+LoginPath, page("login.html"))
	mux.Handle("GET /{$}", protect(page("index.html")))
	mux.Handle("GET /static/", Assets())
}

// Assets serves the stylesheet and scripts shared by both pages.
func Assets() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

func page(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFileFS(w, r, staticFS, "static/"+name)
	})
}
