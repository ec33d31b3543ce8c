package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters, histograms, and gauges recorded by a
// distcgp process. All instruments use the "distcgp_" prefix.
type Metrics struct {
	// CyclesTotal counts completed local-generation cycles.
	CyclesTotal metric.Int64Counter

	// CycleDuration records the wall-clock time of one Iterate call.
	CycleDuration metric.Float64Histogram

	// CrossoverEventsTotal counts sub-population crossover events performed.
	CrossoverEventsTotal metric.Int64Counter

	// MigrationsTotal counts genome migrations across process boundaries.
	// The sending and the receiving process each count a migration once; no
	// direction attribute is recorded.
	MigrationsTotal metric.Int64Counter

	// RankSyncDuration records the time spent blocked in rank-map
	// synchronization per cycle.
	RankSyncDuration metric.Float64Histogram

	// BestFitness is an observable gauge reporting the fittest island's
	// score, sampled on scrape via RegisterBestFitness.
	BestFitness metric.Int64ObservableGauge

	// CheckpointsTotal counts checkpoint snapshots written.
	CheckpointsTotal metric.Int64Counter

	// ArchiveWritesTotal counts final-result archive writes; local-only and
	// GCS-mirrored writes are counted together.
	ArchiveWritesTotal metric.Int64Counter
}

// NewMetrics registers every instrument with meter and returns the
// populated Metrics. BestFitness remains unset until RegisterBestFitness is
// called, since an observable gauge needs its callback wired first.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CyclesTotal, err = meter.Int64Counter(
		"distcgp_cycles_total",
		metric.WithDescription("Completed local-generation cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycles_total: %w", err)
	}

	m.CycleDuration, err = meter.Float64Histogram(
		"distcgp_cycle_duration_seconds",
		metric.WithDescription("Duration of one crossover+iterate+sync cycle"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create cycle_duration: %w", err)
	}

	m.CrossoverEventsTotal, err = meter.Int64Counter(
		"distcgp_crossover_events_total",
		metric.WithDescription("Sub-population crossover events performed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create crossover_events_total: %w", err)
	}

	m.MigrationsTotal, err = meter.Int64Counter(
		"distcgp_migrations_total",
		metric.WithDescription("Genome migrations crossing a process boundary"),
		metric.WithUnit("{migration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create migrations_total: %w", err)
	}

	m.RankSyncDuration, err = meter.Float64Histogram(
		"distcgp_rank_sync_duration_seconds",
		metric.WithDescription("Time blocked synchronizing the rank map"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create rank_sync_duration: %w", err)
	}

	m.CheckpointsTotal, err = meter.Int64Counter(
		"distcgp_checkpoints_total",
		metric.WithDescription("Checkpoint snapshots written"),
		metric.WithUnit("{checkpoint}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkpoints_total: %w", err)
	}

	m.ArchiveWritesTotal, err = meter.Int64Counter(
		"distcgp_archive_writes_total",
		metric.WithDescription("Final-result archive writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create archive_writes_total: %w", err)
	}

	return m, nil
}

// RegisterBestFitness wires an observable gauge that reports fitnessFunc's
// value on every scrape.
func (m *Metrics) RegisterBestFitness(meter metric.Meter, fitnessFunc func() int64) (metric.Registration, error) {
	var err error
	m.BestFitness, err = meter.Int64ObservableGauge(
		"distcgp_best_fitness",
		metric.WithDescription("Fitness score of this process's best island"),
		metric.WithUnit("{score}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create best_fitness: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.BestFitness, fitnessFunc())
		return nil
	}, m.BestFitness)
}
