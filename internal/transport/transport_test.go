package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/distcgp/distcgp/internal/secret"
	"github.com/distcgp/distcgp/internal/wire"
)

func testToken(t *testing.T) *secret.JoinToken {
	t.Helper()
	t.Setenv("DISTCGP_TRANSPORT_TEST_TOKEN", "test-token")
	tok, err := secret.FromEnv("DISTCGP_TRANSPORT_TEST_TOKEN")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	t.Cleanup(tok.Destroy)
	return tok
}

func TestGobCodecRoundTrip(t *testing.T) {
	codec := gobCodec{}
	batch := wire.MigrationBatch{
		SourceDomainIndex: 7,
		Genomes: []wire.GenomeFrame{
			{InputCount: 2, OutputCount: 1, Genes: []wire.GeneFrame{{Function: 3, AIndex: 0, BIndex: 1}}},
		},
	}
	data, err := codec.Marshal(&batch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out wire.MigrationBatch
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.SourceDomainIndex != 7 || len(out.Genomes) != 1 || out.Genomes[0].Genes[0].BIndex != 1 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestServerDeliverAndReceiveRoundTrip(t *testing.T) {
	s := NewServer(nil, 1)
	batch := wire.MigrationBatch{SourceDomainIndex: 3, Genomes: []wire.GenomeFrame{{InputCount: 1, OutputCount: 1}}}

	if _, err := s.DeliverMigration(context.Background(), &DeliverMigrationRequest{Batch: batch}); err != nil {
		t.Fatalf("DeliverMigration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := s.Receive(ctx, 3)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.SourceDomainIndex != 3 {
		t.Fatalf("expected source domain index 3, got %d", got.SourceDomainIndex)
	}
}

func TestServerReceiveBlocksUntilDelivered(t *testing.T) {
	s := NewServer(nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := make(chan wire.MigrationBatch, 1)
	go func() {
		batch, err := s.Receive(ctx, 9)
		if err != nil {
			t.Errorf("Receive: %v", err)
			return
		}
		result <- batch
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := s.DeliverMigration(context.Background(), &DeliverMigrationRequest{Batch: wire.MigrationBatch{SourceDomainIndex: 9}}); err != nil {
		t.Fatalf("DeliverMigration: %v", err)
	}

	select {
	case batch := <-result:
		if batch.SourceDomainIndex != 9 {
			t.Fatalf("expected source domain index 9, got %d", batch.SourceDomainIndex)
		}
	case <-time.After(time.Second):
		t.Fatalf("Receive never unblocked after delivery")
	}
}

func TestServerReceiveTimesOutWithoutDelivery(t *testing.T) {
	s := NewServer(nil, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Receive(ctx, 1); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestSynchroniseRankMapWaitsForEveryRank(t *testing.T) {
	const worldSize = 3
	s := NewServer(nil, worldSize)

	var wg sync.WaitGroup
	results := make([]wire.RankMap, worldSize)
	for rank := uint32(0); rank < worldSize; rank++ {
		wg.Add(1)
		go func(rank uint32) {
			defer wg.Done()
			resp, err := s.SynchroniseRankMap(context.Background(), &RankReportRequest{
				Report: wire.RankReport{Rank: rank, Entries: []wire.RankEntry{{DomainIndex: rank, Fitness: rank * 10}}},
			})
			if err != nil {
				t.Errorf("SynchroniseRankMap: %v", err)
				return
			}
			results[rank] = resp.Map
		}(rank)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("SynchroniseRankMap never returned for all ranks")
	}

	if len(results[0].Entries) != worldSize {
		t.Fatalf("expected %d merged entries, got %d", worldSize, len(results[0].Entries))
	}
	for rank := uint32(1); rank < worldSize; rank++ {
		if len(results[rank].Entries) != len(results[0].Entries) {
			t.Fatalf("rank %d got a differently-sized merged map", rank)
		}
	}
}

func TestBarrierReleasesOnlyAfterEveryRankArrives(t *testing.T) {
	const worldSize = 2
	s := NewServer(nil, worldSize)

	firstDone := make(chan struct{})
	go func() {
		if _, err := s.Barrier(context.Background(), &BarrierRequest{Rank: 0}); err != nil {
			t.Errorf("Barrier: %v", err)
		}
		close(firstDone)
	}()

	select {
	case <-firstDone:
		t.Fatalf("barrier released before the second rank arrived")
	case <-time.After(30 * time.Millisecond):
	}

	if _, err := s.Barrier(context.Background(), &BarrierRequest{Rank: 1}); err != nil {
		t.Fatalf("Barrier: %v", err)
	}
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatalf("barrier never released after both ranks arrived")
	}
}

func TestUnaryServerInterceptorRejectsMissingOrWrongToken(t *testing.T) {
	token := testToken(t)
	interceptor := UnaryServerInterceptor(token)
	handlerCalled := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return nil, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/" + serviceName + "/Barrier"}

	if _, err := interceptor(context.Background(), nil, info, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated for missing metadata, got %v", err)
	}

	badCtx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(joinTokenHeader, "wrong"))
	if _, err := interceptor(badCtx, nil, info, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated for wrong token, got %v", err)
	}
	if handlerCalled {
		t.Fatalf("handler should never be invoked on auth failure")
	}

	goodCtx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(joinTokenHeader, token.String()))
	if _, err := interceptor(goodCtx, nil, info, handler); err != nil {
		t.Fatalf("expected success with correct token, got %v", err)
	}
	if !handlerCalled {
		t.Fatalf("expected handler to be invoked with correct token")
	}
}

func TestWithJoinTokenAttachesHeader(t *testing.T) {
	token := testToken(t)
	ctx := WithJoinToken(context.Background(), token)
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatalf("expected outgoing metadata to be set")
	}
	values := md.Get(joinTokenHeader)
	if len(values) != 1 || values[0] != token.String() {
		t.Fatalf("expected join token header to carry the token, got %v", values)
	}
}
