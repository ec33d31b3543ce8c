package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Topology = Topology{
		Rank:         0,
		WorldSize:    2,
		Listen:       ":7000",
		Peers:        map[uint32]string{1: "localhost:7001"},
		JoinTokenEnv: "DISTCGP_JOIN_TOKEN",
	}
	cfg.Archive = Archive{LocalDir: "out"}
	return cfg
}

func TestValidateAcceptsDefaultsPlusTopologyAndArchive(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingWorldSize(t *testing.T) {
	cfg := validConfig()
	cfg.Topology.WorldSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero world size")
	}
}

func TestValidateRejectsRankOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Topology.Rank = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for rank >= world size")
	}
}

func TestValidateRejectsMissingPeerAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Topology.WorldSize = 3
	// rank 2's address is missing from Peers.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing peer address")
	}
}

func TestValidateRejectsMissingJoinTokenSource(t *testing.T) {
	cfg := validConfig()
	cfg.Topology.JoinTokenEnv = ""
	cfg.Topology.JoinTokenFile = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no join token source is configured")
	}
}

func TestValidateRejectsZeroAlgorithmFields(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm.SubPopCount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero subpopulation count")
	}
}

func TestValidateRejectsMissingArchiveLocalDir(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.LocalDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing archive local directory")
	}
}

func TestCycleCountDerivation(t *testing.T) {
	a := Algorithm{SubPopCount: 8, TotalGenerations: 262144, GenerationsPerCycle: 1024}
	if got, want := a.CycleCount(), uint32(32); got != want {
		t.Fatalf("CycleCount = %d, want %d", got, want)
	}
}

func TestLoadFileMergesOntoBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distcgp.yaml")
	yamlBody := "algorithm:\n  subPopCount: 16\narchive:\n  localDir: custom-out\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	base := validConfig()
	got, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Algorithm.SubPopCount != 16 {
		t.Fatalf("SubPopCount = %d, want 16", got.Algorithm.SubPopCount)
	}
	if got.Archive.LocalDir != "custom-out" {
		t.Fatalf("LocalDir = %q, want custom-out", got.Archive.LocalDir)
	}
	// Fields the file omitted keep the base value.
	if got.Algorithm.GenomeSize != base.Algorithm.GenomeSize {
		t.Fatalf("GenomeSize = %d, want base value %d", got.Algorithm.GenomeSize, base.Algorithm.GenomeSize)
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/distcgp.yaml", DefaultConfig()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestParsePeers(t *testing.T) {
	peers, err := ParsePeers("0=host-a:7000,1=host-b:7001")
	if err != nil {
		t.Fatalf("ParsePeers: %v", err)
	}
	if peers[0] != "host-a:7000" || peers[1] != "host-b:7001" {
		t.Fatalf("ParsePeers = %+v, want {0:host-a:7000 1:host-b:7001}", peers)
	}
}

func TestParsePeersEmpty(t *testing.T) {
	peers, err := ParsePeers("")
	if err != nil {
		t.Fatalf("ParsePeers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("expected no peers, got %+v", peers)
	}
}

func TestParsePeersInvalidEntry(t *testing.T) {
	if _, err := ParsePeers("not-a-valid-entry"); err == nil {
		t.Fatal("expected error for malformed peer entry")
	}
}
