package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathantxj/fossil-headers-db/internal/chainrpc"
)

// fakeChain is an in-memory chainSource; every block number is served
// except while fails[n] is positive, letting tests simulate flaky RPC
// without a live node. GetFullBlockByNumber does not consult present.
type fakeChain struct {
	mu      sync.Mutex
	latest  int64
	present map[int64]bool
	fails   map[int64]int // remaining failures before a block starts succeeding
}

func newFakeChain(latest int64) *fakeChain {
	return &fakeChain{latest: latest, present: map[int64]bool{}, fails: map[int64]int{}}
}

func (f *fakeChain) GetFullBlockByNumber(ctx context.Context, number int64, timeout time.Duration) (*chainrpc.BlockHeader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[number] > 0 {
		f.fails[number]--
		return nil, fmt.Errorf("simulated transport error for block %d", number)
	}
	hash := fmt.Sprintf("0x%064x", number)
	return &chainrpc.BlockHeader{Hash: hash, Number: fmt.Sprintf("0x%x", number)}, nil
}

func (f *fakeChain) GetLatestFinalizedBlockNumber(ctx context.Context, timeout time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, nil
}

// fakeStore is an in-memory blockWriter/blockSource standing in for
// Postgres in tests.
type fakeStore struct {
	mu     sync.Mutex
	blocks map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: map[int64]string{}}
}

func (f *fakeStore) CreateTables(ctx context.Context) error { return nil }

func (f *fakeStore) GetLastStoredBlockNumber(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := int64(-1)
	for n := range f.blocks {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (f *fakeStore) FindFirstGap(ctx context.Context, start, end int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := start; n <= end; n++ {
		if _, ok := f.blocks[n]; !ok {
			return n, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) WriteBlockHeader(ctx context.Context, header *chainrpc.BlockHeader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := hexToInt(header.Number)
	if err != nil {
		return err
	}
	f.blocks[n] = header.Hash
	return nil
}

func (f *fakeStore) numbers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for n := range f.blocks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hexToInt(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "0x%x", &n)
	return n, err
}

func TestFillGapsBackfillsMissingBlocks(t *testing.T) {
	st := newFakeStore()
	st.blocks[0] = "present"
	st.blocks[1] = "present"
	st.blocks[3] = "present"

	chain := newFakeChain(3)
	e := &Engine{rpc: chain, store: st}

	end := int64(3)
	if err := e.FillGaps(context.Background(), nil, &end, nil); err != nil {
		t.Fatalf("FillGaps: %v", err)
	}

	got := st.numbers()
	want := []int64{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("numbers = %v, want %v", got, want)
			break
		}
	}
}

func TestFillGapsRetriesTransientFailures(t *testing.T) {
	st := newFakeStore()
	st.blocks[0] = "present"

	chain := newFakeChain(1)
	chain.fails[1] = 2 // fails twice, then succeeds within perBlockMaxRetries
	e := &Engine{rpc: chain, store: st}

	end := int64(1)
	if err := e.FillGaps(context.Background(), nil, &end, nil); err != nil {
		t.Fatalf("FillGaps: %v", err)
	}
	if _, ok := st.blocks[1]; !ok {
		t.Error("block 1 was not eventually written despite recovering within the retry budget")
	}
}

func TestFillGapsHonorsCancellation(t *testing.T) {
	st := newFakeStore()
	chain := newFakeChain(5)
	e := &Engine{rpc: chain, store: st}

	var cancel atomic.Bool
	cancel.Store(true)

	end := int64(5)
	if err := e.FillGaps(context.Background(), nil, &end, &cancel); err != nil {
		t.Fatalf("FillGaps: %v", err)
	}
	if len(st.numbers()) != 0 {
		t.Error("FillGaps wrote blocks despite the cancellation flag being set")
	}
}

func TestUpdateFromCatchesUpToEnd(t *testing.T) {
	st := newFakeStore()
	chain := newFakeChain(9)
	e := &Engine{rpc: chain, store: st}

	start := int64(0)
	end := int64(9)
	if err := e.UpdateFrom(context.Background(), &start, &end, 4, nil); err != nil {
		t.Fatalf("UpdateFrom: %v", err)
	}

	got := st.numbers()
	if len(got) != 10 {
		t.Fatalf("wrote %d blocks, want 10: %v", len(got), got)
	}
}

func TestUpdateFromDefaultsStartToStoreTip(t *testing.T) {
	st := newFakeStore()
	st.blocks[0] = "present"
	st.blocks[1] = "present"
	chain := newFakeChain(3)
	e := &Engine{rpc: chain, store: st}

	end := int64(3)
	if err := e.UpdateFrom(context.Background(), nil, &end, 2, nil); err != nil {
		t.Fatalf("UpdateFrom: %v", err)
	}

	got := st.numbers()
	want := []int64{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
}
