// Package config holds the run configuration for distcgp: the CLI flags
// from spec.md §6 plus the process-topology and ambient-stack fields the
// original left to mpirun and compile-time constants.
//
// A Config is assembled from cobra flags by cmd/distcgp, optionally
// overlaid with a YAML file (the teacher's cmd/aleutian/main.go pattern),
// and validated with go-playground/validator before a run starts — this
// is spec.md §7's "configuration errors: zero input or output count"
// class of mistake, caught before any island is initialised.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Topology describes this process's place in the run's world.
type Topology struct {
	// Rank is this process's rank, 0 <= Rank < WorldSize.
	Rank uint32 `yaml:"rank" validate:"gte=0"`

	// WorldSize is the total number of cooperating processes.
	WorldSize uint32 `yaml:"worldSize" validate:"required,gte=1"`

	// Listen is the address this process's transport server binds to.
	Listen string `yaml:"listen" validate:"required"`

	// Peers maps every other rank to a dialable "host:port" address.
	// Peers[Rank] is ignored; a process never dials itself. Empty is valid
	// for a single-process (WorldSize == 1) run; Validate checks completeness
	// against WorldSize itself rather than via a struct tag.
	Peers map[uint32]string `yaml:"peers"`

	// JoinTokenEnv names the environment variable holding the cluster
	// join token. Consulted only when JoinTokenFile is empty.
	JoinTokenEnv string `yaml:"joinTokenEnv"`

	// JoinTokenFile names a file holding the cluster join token. When set,
	// it takes precedence over JoinTokenEnv.
	JoinTokenFile string `yaml:"joinTokenFile"`
}

// Algorithm holds the CLI surface from spec.md §6.
type Algorithm struct {
	// SubPopCount is --subpopcount, the number of islands (default 8).
	SubPopCount uint32 `yaml:"subPopCount" validate:"required,gte=1"`

	// SubPopSize is --subpopsize, genomes per island (default 4).
	SubPopSize uint32 `yaml:"subPopSize" validate:"required,gte=1"`

	// GenomeSize is --genomesize, gates per genome (default 1024).
	GenomeSize uint32 `yaml:"genomeSize" validate:"required,gte=1"`

	// TotalGenerations is --totalgenerations, the overall generation
	// budget across all cycles (default 262144).
	TotalGenerations uint32 `yaml:"totalGenerations" validate:"required,gte=1"`

	// GenerationsPerCycle is --generationspercycle, local generations
	// run between each global rank-map sync (default 1024).
	GenerationsPerCycle uint32 `yaml:"generationsPerCycle" validate:"required,gte=1"`

	// PatternFile is --patternfile, the truth-table input (default
	// "target.pat").
	PatternFile string `yaml:"patternFile" validate:"required"`

	// ThreadCount is --threadcount, the size of the local-island worker
	// pool (default 2).
	ThreadCount uint32 `yaml:"threadCount" validate:"required,gte=1"`
}

// CycleCount derives the number of global cycles, per spec.md §6:
// cycleCount = (totalGenerations / subPopCount) / generationsPerCycle.
func (a Algorithm) CycleCount() uint32 {
	return (a.TotalGenerations / a.SubPopCount) / a.GenerationsPerCycle
}

// Checkpoint configures the periodic best-genome snapshot store.
type Checkpoint struct {
	// Enabled turns on periodic BadgerDB snapshots.
	Enabled bool `yaml:"enabled"`

	// Path is the BadgerDB directory. Required if Enabled.
	Path string `yaml:"path"`

	// EveryNCycles snapshots once every N cycles. 0 snapshots every cycle.
	EveryNCycles uint32 `yaml:"everyNCycles"`
}

// Archive configures the final-result sink.
type Archive struct {
	// LocalDir is where outputGenome.op and manifest.json are written.
	// Required; this is spec.md §6's mandatory output.
	LocalDir string `yaml:"localDir" validate:"required"`

	// GCSBucket, if set, additionally uploads both files to this bucket.
	GCSBucket string `yaml:"gcsBucket"`

	// GCSPrefix is prepended to uploaded object names.
	GCSPrefix string `yaml:"gcsPrefix"`

	// GCSCredentialsFile is a path to a service-account key. Empty uses
	// the environment's default application credentials.
	GCSCredentialsFile string `yaml:"gcsCredentialsFile"`
}

// Telemetry configures tracing and metrics.
type Telemetry struct {
	// ServiceName tags every span and metric; defaults to "distcgp".
	ServiceName string `yaml:"serviceName"`

	// Environment tags the deployment environment, e.g. "dev", "prod".
	Environment string `yaml:"environment"`

	// TraceExporter selects "stdout" or "otlp". Empty uses the package
	// default.
	TraceExporter string `yaml:"traceExporter"`

	// MetricExporter selects "prometheus" or "stdout". Empty uses the
	// package default.
	MetricExporter string `yaml:"metricExporter"`

	// OTLPEndpoint is the collector address when TraceExporter is "otlp".
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Ops configures the /healthz and /metrics HTTP listener that the run
// subcommand starts; serve-ops takes its address from its own --ops-listen
// flag instead.
type Ops struct {
	// Listen is the /healthz and /metrics bind address.
	Listen string `yaml:"listen"`
}

// Config is the fully assembled, validated configuration for one process
// of a distcgp run.
type Config struct {
	RunID      string     `yaml:"runId"`
	Topology   Topology   `yaml:"topology" validate:"required"`
	Algorithm  Algorithm  `yaml:"algorithm" validate:"required"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
	Archive    Archive    `yaml:"archive" validate:"required"`
	Telemetry  Telemetry  `yaml:"telemetry"`
	Ops        Ops        `yaml:"ops"`
}

// DefaultConfig returns the CLI defaults documented in spec.md §6, with
// an empty topology and archive (both must be supplied by flags, a YAML
// file, or both before validation will pass).
func DefaultConfig() Config {
	return Config{
		Algorithm: Algorithm{
			SubPopCount:         8,
			SubPopSize:          4,
			GenomeSize:          1024,
			TotalGenerations:    262144,
			GenerationsPerCycle: 1024,
			PatternFile:         "target.pat",
			ThreadCount:         2,
		},
		Checkpoint: Checkpoint{
			EveryNCycles: 1,
		},
		Ops: Ops{
			Listen: ":9090",
		},
	}
}

var validate = validator.New()

// Validate checks struct tags across the whole config, returning every
// violation joined into a single error so a misconfigured run fails once
// with a complete report instead of one flag at a time.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("config: validate: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
	}
	if c.Topology.Rank >= c.Topology.WorldSize {
		return fmt.Errorf("config: rank %d is out of range for world size %d", c.Topology.Rank, c.Topology.WorldSize)
	}
	if c.Topology.JoinTokenEnv == "" && c.Topology.JoinTokenFile == "" {
		return fmt.Errorf("config: one of topology.joinTokenEnv or topology.joinTokenFile is required")
	}
	for rank := uint32(0); rank < c.Topology.WorldSize; rank++ {
		if rank == c.Topology.Rank {
			continue
		}
		if _, ok := c.Topology.Peers[rank]; !ok {
			return fmt.Errorf("config: missing peer address for rank %d", rank)
		}
	}
	return nil
}

// LoadFile reads a YAML config file and merges it onto base, so flag
// defaults survive for any field the file omits.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ParsePeers parses a "--peers" flag value of the form
// "0=host:port,1=host:port,..." into a rank->address map, the escape
// hatch spec.md left to mpirun's static launch topology.
func ParsePeers(raw string) (map[uint32]string, error) {
	peers := make(map[uint32]string)
	if raw == "" {
		return peers, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: invalid --peers entry %q, want rank=host:port", entry)
		}
		rank, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: invalid rank in --peers entry %q: %w", entry, err)
		}
		peers[uint32(rank)] = parts[1]
	}
	return peers, nil
}
