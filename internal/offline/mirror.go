package offline

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Handler serves the origin through the proxy under prefix, so a browser
// pointed at prefix gets the same offline behaviour.
func (p *Proxy) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rel := strings.TrimPrefix(r.URL.Path, prefix)
		target := p.cfg.Origin.ResolveReference(&url.URL{Path: strings.TrimPrefix(rel, "/"), RawQuery: r.URL.RawQuery})

		out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		out.Header = r.Header.Clone()
		out.ContentLength = r.ContentLength

		resp, err := p.Route(out)
		if err != nil {
			slog.ErrorContext(ctx, "mirror request failed", "url", target.String(), "error", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			slog.ErrorContext(ctx, "failed to copy mirror response", "url", target.String(), "error", err)
		}
	})
}
