// Package wire defines the plain-data structs exchanged between processes
// during migration and global rank synchronization. These are gob-encoded
// by internal/transport and by
// internal/checkpoint; keeping them dependency-free from gene/genome avoids
// an import cycle between this package and internal/genome.
package wire

// GeneFrame is the wire representation of a single gate: its function and
// the indices of its two predecessor signals.
type GeneFrame struct {
	Function uint8
	AIndex   uint32
	BIndex   uint32
}

// GenomeFrame is an ordered list of gene frames, the wire representation of
// one genome.
type GenomeFrame struct {
	InputCount  uint32
	OutputCount uint32
	Genes       []GeneFrame
}

// MigrationBatch is what one island sends to another during crossover: a
// set of genomes exported from a source island, tagged with that island's
// global (domain) index so the importer can log provenance.
type MigrationBatch struct {
	SourceDomainIndex uint32
	Genomes           []GenomeFrame
}

// RankEntry is one (domainIndex, fitness) pair contributed to the global
// rank map.
type RankEntry struct {
	DomainIndex uint32
	Fitness     uint32
}

// RankReport is what a single process sends to the rank-0 coordinator
// during a global rank-map synchronization round.
type RankReport struct {
	Rank    uint32
	Entries []RankEntry
}

// RankMap is the merged, globally-sorted result the rank-0 coordinator
// sends back to every process after a synchronization round.
type RankMap struct {
	Entries []RankEntry
}
