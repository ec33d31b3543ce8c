package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/distcgp/distcgp/internal/archive"
	"github.com/distcgp/distcgp/internal/checkpoint"
	cfgpkg "github.com/distcgp/distcgp/internal/config"
	"github.com/distcgp/distcgp/internal/ga"
	"github.com/distcgp/distcgp/internal/population"
	"github.com/distcgp/distcgp/internal/secret"
	"github.com/distcgp/distcgp/internal/telemetry"
	"github.com/distcgp/distcgp/internal/transport"
	"github.com/distcgp/distcgp/internal/truthtable"
	"github.com/distcgp/distcgp/pkg/logging"
)

func buildConfig() (cfgpkg.Config, error) {
	peerMap, err := cfgpkg.ParsePeers(peers)
	if err != nil {
		return cfgpkg.Config{}, err
	}

	cfg := cfgpkg.DefaultConfig()
	cfg.RunID = uuid.NewString()
	cfg.Algorithm = cfgpkg.Algorithm{
		SubPopCount:         subPopCount,
		SubPopSize:          subPopSize,
		GenomeSize:          genomeSize,
		TotalGenerations:    totalGenerations,
		GenerationsPerCycle: generationsPerCycle,
		PatternFile:         patternFile,
		ThreadCount:         threadCount,
	}
	cfg.Topology = cfgpkg.Topology{
		Rank:          rank,
		WorldSize:     worldSize,
		Listen:        listen,
		Peers:         peerMap,
		JoinTokenEnv:  joinTokenEnv,
		JoinTokenFile: joinTokenFile,
	}
	cfg.Checkpoint = cfgpkg.Checkpoint{
		Enabled:      checkpointEnabled,
		Path:         checkpointDir,
		EveryNCycles: checkpointEvery,
	}
	cfg.Archive = cfgpkg.Archive{
		LocalDir:           archiveDir,
		GCSBucket:          archiveGCSBucket,
		GCSPrefix:          archiveGCSPrefix,
		GCSCredentialsFile: archiveGCSCredentials,
	}
	cfg.Telemetry = cfgpkg.Telemetry{
		Environment:    environment,
		TraceExporter:  traceExporter,
		MetricExporter: metricExporter,
		OTLPEndpoint:   otlpEndpoint,
	}

	if configPath != "" {
		cfg, err = cfgpkg.LoadFile(configPath, cfg)
		if err != nil {
			return cfgpkg.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

func loadJoinToken(topo cfgpkg.Topology) (*secret.JoinToken, error) {
	if topo.JoinTokenFile != "" {
		return secret.FromFile(topo.JoinTokenFile)
	}
	return secret.FromEnv(topo.JoinTokenEnv)
}

func loadPatternFile(path string) (*truthtable.Table, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pattern file %s: %w", path, err)
	}
	defer f.Close()

	table, warnings, err := truthtable.Parse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pattern file %s: %w", path, err)
	}
	return table, warnings, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logDir := filepath.Join(cfg.Archive.LocalDir, "logs")
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "distcgp", LogDir: logDir})
	defer logger.Close()
	log := logger.With("rank", cfg.Topology.Rank, "run_id", cfg.RunID)

	ctx := context.Background()

	telCfg := telemetry.DefaultConfig()
	telCfg.Rank = cfg.Topology.Rank
	telCfg.WorldSize = cfg.Topology.WorldSize
	if cfg.Telemetry.ServiceName != "" {
		telCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	if cfg.Telemetry.Environment != "" {
		telCfg.Environment = cfg.Telemetry.Environment
	}
	if cfg.Telemetry.TraceExporter != "" {
		telCfg.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		telCfg.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(ctx)

	meter := otel.Meter("distcgp")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	go func() {
		if err := opsRouter().Run(cfg.Ops.Listen); err != nil {
			log.Warn("ops server stopped", "error", err)
		}
	}()

	token, err := loadJoinToken(cfg.Topology)
	if err != nil {
		return fmt.Errorf("load join token: %w", err)
	}
	defer token.Destroy()

	server := transport.NewServer(token, cfg.Topology.WorldSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(transport.UnaryServerInterceptor(token)))
	transport.RegisterCoordinatorServer(grpcServer, server)

	lis, err := net.Listen("tcp", cfg.Topology.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Topology.Listen, err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("transport server stopped", "error", err)
		}
	}()
	defer grpcServer.GracefulStop()

	coordinator := transport.NewCoordinator(cfg.Topology.Rank, cfg.Topology.WorldSize, token, server, cfg.Topology.Peers)
	defer coordinator.Close()

	target, warnings, err := loadPatternFile(cfg.Algorithm.PatternFile)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn("pattern file warning", "warning", w)
	}

	algo := population.NewAlgorithm(cfg.Algorithm.SubPopCount, cfg.Algorithm.SubPopSize, cfg.Algorithm.GenomeSize)
	algo.SetGenerationsPerCycle(cfg.Algorithm.GenerationsPerCycle)

	pop := population.New(algo, cfg.Topology.Rank, cfg.Topology.WorldSize, coordinator)
	pop.Metrics = metrics
	pop.MaxWorkers = cfg.Algorithm.ThreadCount

	if err := pop.Initialise(ctx, target, ga.DefaultFitnessFunc); err != nil {
		return fmt.Errorf("initialise population: %w", err)
	}

	reg, err := metrics.RegisterBestFitness(meter, func() int64 {
		return int64(pop.BestIsland().GetPerfData().BestGenomeFitness)
	})
	if err != nil {
		return fmt.Errorf("register best fitness gauge: %w", err)
	}
	defer reg.Unregister()

	var store *checkpoint.Store
	if cfg.Checkpoint.Enabled {
		store, err = checkpoint.Open(checkpoint.Config{
			Path:       cfg.Checkpoint.Path,
			SyncWrites: true,
			Logger:     logger.Slog(),
		})
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer store.Close()
	}

	// isatty decides whether the rank-map dump gets ANSI column alignment;
	// a log-aggregator pipe gets plain columns instead.
	dumpAligned := isatty.IsTerminal(os.Stdout.Fd())
	dumpLimiter := rate.NewLimiter(rate.Every(time.Second), 1)

	cycleCount := int(cfg.Algorithm.CycleCount())
	onCycle := func(cycle int) error {
		if cfg.Topology.Rank == 0 && dumpLimiter.Allow() {
			printRankMapDump(pop.DumpRankMap(), dumpAligned)
		}
		if store != nil && (cfg.Checkpoint.EveryNCycles == 0 || uint32(cycle)%cfg.Checkpoint.EveryNCycles == 0) {
			if err := store.SaveBestGenomes(ctx, uint64(cycle), pop.Islands()); err != nil {
				return fmt.Errorf("checkpoint cycle %d: %w", cycle, err)
			}
			metrics.CheckpointsTotal.Add(ctx, 1)
		}
		return nil
	}

	if err := pop.IterateN(ctx, target, ga.DefaultFitnessFunc, cycleCount, onCycle); err != nil {
		log.Error("run failed", "error", err)
		return fmt.Errorf("run: %w", err)
	}

	if cfg.Topology.Rank == 0 {
		writer := archive.New(cfg.Archive.LocalDir, archive.GCSConfig{
			Bucket:          cfg.Archive.GCSBucket,
			Prefix:          cfg.Archive.GCSPrefix,
			CredentialsFile: cfg.Archive.GCSCredentialsFile,
		})
		best := pop.BestIsland()
		manifest := archive.Manifest{
			RunID:         cfg.RunID,
			CompletedAt:   time.Now(),
			WorldSize:     cfg.Topology.WorldSize,
			SubPopCount:   cfg.Algorithm.SubPopCount,
			GenomeCount:   cfg.Algorithm.SubPopSize,
			GenomeLength:  cfg.Algorithm.GenomeSize,
			TotalCycles:   cycleCount,
			BestFitness:   best.GetPerfData().BestGenomeFitness,
			BestDomainIdx: best.DomainIndex,
		}
		if err := writer.WriteFinalResult(ctx, best.BestGenome(), manifest); err != nil {
			return fmt.Errorf("archive final result: %w", err)
		}
		metrics.ArchiveWritesTotal.Add(ctx, 1)

		if logPath := logger.FilePath(); logPath != "" {
			if err := writer.ArchiveLogFile(ctx, logPath); err != nil {
				log.Warn("archive log file failed", "error", err)
			}
		}
		log.Info("run complete", "best_fitness", manifest.BestFitness, "cycles", cycleCount)
	}

	return nil
}

// printRankMapDump prints one cycle's rank-map dump, per spec.md §6's
// periodic stdout output. aligned requests a fixed-width, ANSI-highlighted
// column layout suited to a terminal; piped output prints Population's
// plain "key=value" lines as-is, since a log aggregator has no use for
// column padding or color codes.
func printRankMapDump(dump string, aligned bool) {
	if !aligned {
		fmt.Print(dump)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(dump, "\n"), "\n") {
		var rankIdx, domainIdx, fitness uint32
		if _, err := fmt.Sscanf(line, "ranking=%d domain_index=%d fitness=%d", &rankIdx, &domainIdx, &fitness); err != nil {
			fmt.Println(line)
			continue
		}
		row := fmt.Sprintf("%-4d %-4d %8d", rankIdx, domainIdx, fitness)
		if rankIdx == 0 {
			fmt.Printf("\033[1;32m%s\033[0m\n", row)
		} else {
			fmt.Println(row)
		}
	}
}
