package hold

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	holdsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "earnflow_holds_placed_total",
		Help: "Total number of holds placed.",
	})

	holdsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "earnflow_holds_blocked_total",
		Help: "Total number of hold placements blocked by risk policy.",
	})

	holdResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "earnflow_hold_resolutions_total",
		Help: "Total number of hold resolutions by outcome.",
	}, []string{"outcome"})

	expiredSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "earnflow_expired_holds_released_total",
		Help: "Total number of expired holds auto-released by the sweep.",
	})
)
