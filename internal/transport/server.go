package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/distcgp/distcgp/internal/secret"
	"github.com/distcgp/distcgp/internal/wire"
)

// Server is the transport-layer peer every process in a run exposes. It
// holds this process's migration inbox (populated by remote DeliverMigration
// pushes, drained by this process's own Coordinator.ReceiveMigration) and,
// if this process is rank 0, the collective state for rank-map
// synchronization and barriers every process in the run round-trips
// through.
type Server struct {
	Token *secret.JoinToken

	worldSize uint32

	inboxMu sync.Mutex
	inbox   map[uint32]chan wire.MigrationBatch // keyed by source domain index

	// Rank-0-only collective state. Both start nil; a round is created by the
	// first SynchroniseRankMap/Barrier call of that round, and only the
	// rank-0 process's Server ever receives such calls.
	collectiveMu sync.Mutex
	rankRound    *rankRound
	barrierRound *barrierRound
}

type rankRound struct {
	reports map[uint32]wire.RankReport
	done    chan wire.RankMap
}

type barrierRound struct {
	arrived map[uint32]struct{}
	done    chan struct{}
}

// NewServer builds a transport server for a process hosting worldSize
// processes in total. Every process runs a Server (to receive migration
// pushes addressed to it); only the rank-0 process's Server ever populates
// rankRound/barrierRound, since every SynchroniseRankMap/Barrier RPC is
// routed to rank 0 regardless of which process issues it.
func NewServer(token *secret.JoinToken, worldSize uint32) *Server {
	return &Server{
		Token:     token,
		worldSize: worldSize,
		inbox:     make(map[uint32]chan wire.MigrationBatch),
	}
}

func (s *Server) inboxFor(sourceDomainIndex uint32) chan wire.MigrationBatch {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	ch, ok := s.inbox[sourceDomainIndex]
	if !ok {
		ch = make(chan wire.MigrationBatch, 1)
		s.inbox[sourceDomainIndex] = ch
	}
	return ch
}

// DeliverMigration implements CoordinatorServer: it deposits the batch into
// this process's own inbox, to be drained by a local call to
// Coordinator.ReceiveMigration. The RPC handler never touches island state
// directly — only the population layer, draining its own inbox, does.
func (s *Server) DeliverMigration(ctx context.Context, req *DeliverMigrationRequest) (*DeliverMigrationResponse, error) {
	ch := s.inboxFor(req.Batch.SourceDomainIndex)
	select {
	case ch <- req.Batch:
	default:
		return nil, fmt.Errorf("transport: inbox for domain index %d already has an undelivered batch", req.Batch.SourceDomainIndex)
	}
	return &DeliverMigrationResponse{}, nil
}

// Receive blocks until a batch pushed via DeliverMigration for
// sourceDomainIndex arrives, or ctx is done. This is the local half of the
// transmit/receive pair — it never leaves the process.
func (s *Server) Receive(ctx context.Context, sourceDomainIndex uint32) (wire.MigrationBatch, error) {
	ch := s.inboxFor(sourceDomainIndex)
	select {
	case batch := <-ch:
		return batch, nil
	case <-ctx.Done():
		return wire.MigrationBatch{}, ctx.Err()
	}
}

// SynchroniseRankMap implements CoordinatorServer for the rank-0 process:
// it accumulates one report per process, and once every process in the run
// has reported in for this round, merges, orders the entries by domain
// index, and hands the same result back to every caller — the rank-0
// emulation of MPI_Allgatherv. Ranking by fitness is left to the caller.
func (s *Server) SynchroniseRankMap(ctx context.Context, req *RankReportRequest) (*RankMapResponse, error) {
	done := s.joinRankRound(req.Report)
	select {
	case merged := <-done:
		return &RankMapResponse{Map: merged}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) joinRankRound(report wire.RankReport) chan wire.RankMap {
	s.collectiveMu.Lock()
	defer s.collectiveMu.Unlock()

	if s.rankRound == nil {
		s.rankRound = &rankRound{reports: make(map[uint32]wire.RankReport), done: make(chan wire.RankMap, s.worldSize)}
	}
	round := s.rankRound
	round.reports[report.Rank] = report

	if uint32(len(round.reports)) == s.worldSize {
		merged := mergeRankReports(round.reports)
		for i := uint32(0); i < s.worldSize; i++ {
			round.done <- merged
		}
		s.rankRound = nil
	}
	return round.done
}

func mergeRankReports(reports map[uint32]wire.RankReport) wire.RankMap {
	var entries []wire.RankEntry
	for _, r := range reports {
		entries = append(entries, r.Entries...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DomainIndex < entries[j].DomainIndex })
	return wire.RankMap{Entries: entries}
}

// Barrier implements CoordinatorServer for the rank-0 process: it releases
// every caller only once every process in the run has called in for this
// round, the rank-0 emulation of MPI_Barrier.
func (s *Server) Barrier(ctx context.Context, req *BarrierRequest) (*BarrierResponse, error) {
	done := s.joinBarrierRound(req.Rank)
	select {
	case <-done:
		return &BarrierResponse{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) joinBarrierRound(rank uint32) chan struct{} {
	s.collectiveMu.Lock()
	defer s.collectiveMu.Unlock()

	if s.barrierRound == nil {
		s.barrierRound = &barrierRound{arrived: make(map[uint32]struct{}), done: make(chan struct{})}
	}
	round := s.barrierRound
	round.arrived[rank] = struct{}{}

	if uint32(len(round.arrived)) == s.worldSize {
		close(round.done)
		s.barrierRound = nil
	}
	return round.done
}
