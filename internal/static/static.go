package static

import (
	"crypto/sha256"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
)

//go:embed style.css
var styleCSS []byte

//go:embed icon.svg
var iconSVG []byte

//go:embed manifest.webmanifest
var webManifest []byte

const StyleAssetPath = "/static/style.css"

type asset struct {
	path        string
	contentType string
	body        []byte
	etag        string
}

func assets() []asset {
	list := []asset{
		{path: StyleAssetPath, contentType: "text/css; charset=utf-8", body: styleCSS},
		{path: "/static/icon.svg", contentType: "image/svg+xml", body: iconSVG},
		{path: "/manifest.webmanifest", contentType: "application/manifest+json", body: webManifest},
	}
	for i := range list {
		list[i].etag = fmt.Sprintf(`"%x"`, sha256.Sum256(list[i].body))
	}
	return list
}

// Register serves the embedded shell assets. They are revalidated with an
// ETag rather than cached forever since the offline proxy keys them by path.
func Register(mux *http.ServeMux) {
	for _, a := range assets() {
		mux.HandleFunc("GET "+a.path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("If-None-Match") == a.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("Content-Type", a.contentType)
			w.Header().Set("Cache-Control", "public, max-age=0, no-cache")
			w.Header().Set("ETag", a.etag)
			if _, err := w.Write(a.body); err != nil {
				slog.ErrorContext(r.Context(), "failed to write static asset", "path", a.path, "error", err)
			}
		})
	}
}
