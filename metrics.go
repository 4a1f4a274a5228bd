package broadphase

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel   = "world"
	reasonLabel  = "reason"
	errTypeLabel = "error_type"

	skipDuplicate = "duplicate"
	skipStale     = "stale"
	skipSeparated = "separated"
)

var (
	collisionRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadphase_collision_records",
		Help: "The number of collision records produced by the broad phase.",
	}, []string{worldLabel})

	collisionDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadphase_collision_dispatches",
		Help: "The number of collision callbacks invoked.",
	}, []string{worldLabel})

	collisionSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadphase_collision_skips",
		Help: "The collision records that were dropped before dispatch.",
	}, []string{
		worldLabel,
		reasonLabel,
	})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "broadphase_step_duration_seconds",
		Help: "The time to run one world step.",
	}, []string{worldLabel})

	indexNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "broadphase_index_nodes",
		Help: "The number of live shape tree nodes.",
	}, []string{worldLabel})

	fatalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadphase_fatal_errors",
		Help: "The unrecoverable errors raised by the engine.",
	}, []string{errTypeLabel})
)

func instrumentCollisionRecords(world string, count int) {
	collisionRecords.
		With(prometheus.Labels{worldLabel: world}).
		Add(float64(count))
}

func instrumentCollisionDispatch(world string) {
	collisionDispatches.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}

func instrumentCollisionSkip(world, reason string) {
	collisionSkips.
		With(prometheus.Labels{
			worldLabel:  world,
			reasonLabel: reason,
		}).
		Inc()
}

func instrumentStep(world string, start time.Time, nodes int) {
	stepDuration.
		With(prometheus.Labels{worldLabel: world}).
		Observe(time.Since(start).Seconds())
	indexNodes.
		With(prometheus.Labels{worldLabel: world}).
		Set(float64(nodes))
}

func instrumentFatal(err error) {
	fatalErrors.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}
