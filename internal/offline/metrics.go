package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	routePassthrough = "passthrough"
	routeNavigate    = "navigate"
	routeData        = "data"
	routeAsset       = "asset"

	sourceNetwork  = "network"
	sourceCache    = "cache"
	sourceFallback = "fallback"
)

var responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tapeview_offline_responses_total",
	Help: "Responses produced by the offline proxy by route and where they came from.",
}, []string{"route", "source"})

func countResponse(route, source string) {
	responsesTotal.WithLabelValues(route, source).Inc()
}
