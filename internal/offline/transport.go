package offline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewTransport is the network side of the proxy. Transient failures are
// retried retryMax times before the proxy falls back to its cache.
func NewTransport(retryMax int) http.RoundTripper {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = slog.Default()
	return &retryablehttp.RoundTripper{Client: rc}
}
