package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Postboard API build information.",
		},
		[]string{"version", "commit", "auth_mode"},
	)
)

// InitBuildInfo registers build_info once and sets it for this process.
func InitBuildInfo(version, commit, authMode string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(version, commit, authMode).Set(1)
}
