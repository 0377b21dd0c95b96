package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// commandsTotal counts executed commands by name and result
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchstore_commands_total",
		Help: "Total executed commands by name and result",
	}, []string{"command", "result"})

	// commandDuration tracks command latency including commit
	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "patchstore_command_duration_seconds",
		Help:    "Command duration in seconds, including commit",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50µs to ~400ms
	}, []string{"command"})

	// patchesApplied counts patches applied to live containers
	patchesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchstore_patches_applied_total",
		Help: "Total patches applied to live containers by source",
	}, []string{"source"})

	// replaysTotal counts undo and redo steps by result
	replaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchstore_history_replays_total",
		Help: "Total undo/redo replays by direction and result",
	}, []string{"direction", "result"})

	// historyDepth reports the size of the done and undone stacks
	historyDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "patchstore_history_depth",
		Help: "Number of records on the done and undone stacks",
	}, []string{"stack"})
)

func countPatches(source string, changes []Change, dir Direction) {
	n := 0
	for _, c := range changes {
		if dir == Backward {
			n += len(c.Undo)
		} else {
			n += len(c.Do)
		}
	}
	patchesApplied.WithLabelValues(source).Add(float64(n))
}

func observeDepth(h *History) {
	historyDepth.WithLabelValues("done").Set(float64(len(h.done)))
	historyDepth.WithLabelValues("undone").Set(float64(len(h.undone)))
}
