package telemetry

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(DiscoveryPasses)
	prometheus.MustRegister(SplitsDiscovered)
	prometheus.MustRegister(SplitsAssigned)
	prometheus.MustRegister(PendingSplits)
	prometheus.MustRegister(CommitFetches)
	prometheus.MustRegister(EmptyPolls)
	prometheus.MustRegister(RecordsFetched)
	prometheus.MustRegister(SplitsQuarantined)
	prometheus.MustRegister(CheckpointsWritten)
}

var (
	// Enumerator metrics

	DiscoveryPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_discovery_passes_total",
			Help: "Stream discovery passes by result",
		},
		[]string{"table", "result"},
	)

	SplitsDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_splits_discovered_total",
			Help: "Streams discovered for the first time",
		},
		[]string{"table"},
	)

	SplitsAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_splits_assigned_total",
			Help: "Splits handed to readers",
		},
		[]string{"table"},
	)

	PendingSplits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_pending_splits",
			Help: "Discovered splits waiting for a reader",
		},
		[]string{"table"},
	)

	// Reader metrics

	CommitFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_commit_fetches_total",
			Help: "GetCommits calls by result",
		},
		[]string{"table", "result"},
	)

	EmptyPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_empty_polls_total",
			Help: "Polls that returned no new commits",
		},
		[]string{"table"},
	)

	RecordsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_records_fetched_total",
			Help: "Commit records produced by split readers",
		},
		[]string{"table"},
	)

	SplitsQuarantined = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_splits_quarantined_total",
			Help: "Split fetches that failed terminally and parked the split",
		},
		[]string{"table"},
	)

	CheckpointsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_checkpoints_written_total",
			Help: "Checkpoints written by result",
		},
		[]string{"result"},
	)
)
