package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/mintgate/api/internal/platform/httpx"
)

// StaticHandlers serves the checkout widget assets from a local directory.
type StaticHandlers struct {
	dir string
}

// NewStaticHandlers constructs handlers serving files from dir.
func NewStaticHandlers(dir string) *StaticHandlers {
	return &StaticHandlers{dir: dir}
}

// assetFiles is the allowlist of files served besides the index page.
var assetFiles = map[string]string{
	"style.css":  "text/css; charset=utf-8",
	"script.js":  "text/javascript; charset=utf-8",
	"index.html": "text/html; charset=utf-8",
}

// Routes wires the static asset endpoints onto the provided router.
func (h *StaticHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.serveIndex)
	for name := range assetFiles {
		r.Get("/"+name, h.serveAsset(name))
	}
}

func (h *StaticHandlers) serveIndex(w http.ResponseWriter, r *http.Request) {
	h.serveAsset("index.html")(w, r)
}

// serveAsset opens the file itself and hands it to ServeContent. ServeFile is
// unsuitable here: it redirects any request path ending in /index.html before
// the file is ever opened.
func (h *StaticHandlers) serveAsset(name string) http.HandlerFunc {
	contentType := assetFiles[name]
	path := filepath.Join(h.dir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := os.Open(path)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("asset_not_found", "asset not found", http.StatusNotFound))
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil || info.IsDir() {
			httpx.WriteError(r.Context(), w, httpx.NewError("asset_not_found", "asset not found", http.StatusNotFound))
			return
		}

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		http.ServeContent(w, r, name, info.ModTime(), file)
	}
}
