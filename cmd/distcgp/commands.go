package main

import (
	"github.com/spf13/cobra"
)

// --- Global flag variables, mirroring the teacher's package-level flag
// var block in cmd/aleutian/commands.go. ---
var (
	configPath string

	// Algorithm flags (spec.md §6's CLI surface).
	subPopCount         uint32
	subPopSize          uint32
	genomeSize          uint32
	totalGenerations    uint32
	generationsPerCycle uint32
	patternFile         string
	threadCount         uint32

	// Topology flags, the escape hatch spec.md left to mpirun.
	rank          uint32
	worldSize     uint32
	listen        string
	peers         string
	joinTokenEnv  string
	joinTokenFile string

	// Checkpoint flags.
	checkpointEnabled bool
	checkpointDir     string
	checkpointEvery   uint32

	// Archive flags.
	archiveDir            string
	archiveGCSBucket      string
	archiveGCSPrefix      string
	archiveGCSCredentials string

	// Telemetry flags.
	environment    string
	traceExporter  string
	metricExporter string
	otlpEndpoint   string

	// serve-ops flags.
	opsListen string

	rootCmd = &cobra.Command{
		Use:   "distcgp",
		Short: "Distributed island-model genetic algorithm engine",
		Long: `distcgp evolves fixed-length boolean-circuit genomes toward a
target truth table across a set of cooperating processes, using an island
model with cross-process migration and a globally synchronized rank map.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one process of a distributed evolution",
		RunE:  runRun,
	}

	serveOpsCmd = &cobra.Command{
		Use:   "serve-ops",
		Short: "Serve /healthz and /metrics for this process",
		RunE:  runServeOps,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file overlaying the flags below")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "development", "deployment environment tag for telemetry")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "", "telemetry trace exporter: stdout or otlp (default from OTEL_TRACES_EXPORTER)")
	rootCmd.PersistentFlags().StringVar(&metricExporter, "metric-exporter", "", "telemetry metric exporter: prometheus or stdout (default from OTEL_METRICS_EXPORTER)")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint when --trace-exporter=otlp")

	runCmd.Flags().Uint32Var(&subPopCount, "subpopcount", 8, "number of islands")
	runCmd.Flags().Uint32Var(&subPopSize, "subpopsize", 4, "genomes per island")
	runCmd.Flags().Uint32Var(&genomeSize, "genomesize", 1024, "gates per genome")
	runCmd.Flags().Uint32Var(&totalGenerations, "totalgenerations", 262144, "overall generation budget across all cycles")
	runCmd.Flags().Uint32Var(&generationsPerCycle, "generationspercycle", 1024, "local generations run between each global rank-map sync")
	runCmd.Flags().StringVar(&patternFile, "patternfile", "target.pat", "truth-table input file")
	runCmd.Flags().Uint32Var(&threadCount, "threadcount", 2, "size of the local-island worker pool")

	runCmd.Flags().Uint32Var(&rank, "rank", 0, "this process's rank")
	runCmd.Flags().Uint32Var(&worldSize, "world-size", 1, "total number of cooperating processes")
	runCmd.Flags().StringVar(&listen, "listen", ":7000", "address this process's transport server binds to")
	runCmd.Flags().StringVar(&peers, "peers", "", "comma-separated rank=host:port list for every other rank")
	runCmd.Flags().StringVar(&joinTokenEnv, "join-token-env", "DISTCGP_JOIN_TOKEN", "environment variable holding the cluster join token")
	runCmd.Flags().StringVar(&joinTokenFile, "join-token-file", "", "file holding the cluster join token, if not using an environment variable")

	runCmd.Flags().BoolVar(&checkpointEnabled, "checkpoint", false, "enable periodic best-genome checkpointing")
	runCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "BadgerDB directory for checkpoint snapshots")
	runCmd.Flags().Uint32Var(&checkpointEvery, "checkpoint-every", 1, "snapshot once every N cycles")

	runCmd.Flags().StringVar(&archiveDir, "archive-dir", "./out", "local directory for outputGenome.op and manifest.json")
	runCmd.Flags().StringVar(&archiveGCSBucket, "gcs-bucket", "", "optional GCS bucket to mirror the final archive to")
	runCmd.Flags().StringVar(&archiveGCSPrefix, "gcs-prefix", "", "object name prefix for the GCS mirror")
	runCmd.Flags().StringVar(&archiveGCSCredentials, "gcs-credentials-file", "", "path to a GCS service-account key, if not using default application credentials")

	serveOpsCmd.Flags().StringVar(&opsListen, "ops-listen", ":9090", "address for /healthz and /metrics")

	rootCmd.AddCommand(runCmd, serveOpsCmd)
}
