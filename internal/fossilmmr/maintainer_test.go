package fossilmmr

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// fakeBlockSource is an in-memory BlockSource backed by a fixed slice of
// sequential blocks, standing in for the Postgres-backed store in tests.
type fakeBlockSource struct {
	blocks []BlockDetail
}

func newFakeBlockSource(n int) *fakeBlockSource {
	blocks := make([]BlockDetail, n)
	for i := 0; i < n; i++ {
		var h Hash
		h[0] = byte(i)
		h[1] = byte(i >> 8)
		blocks[i] = BlockDetail{BlockHash: h.String(), Number: int64(i)}
	}
	return &fakeBlockSource{blocks: blocks}
}

func (f *fakeBlockSource) GetLastStoredBlockNumber(ctx context.Context) (int64, error) {
	if len(f.blocks) == 0 {
		return -1, nil
	}
	return f.blocks[len(f.blocks)-1].Number, nil
}

func (f *fakeBlockSource) GetBlockHeaders(ctx context.Context, start int64, limit int) ([]BlockDetail, error) {
	var out []BlockDetail
	for _, b := range f.blocks {
		if b.Number >= start {
			out = append(out, b)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func newTestMaintainer(t *testing.T) *Maintainer {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "mmr.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMaintainerUpdateAppendsAllBlocks(t *testing.T) {
	m := newTestMaintainer(t)
	source := newFakeBlockSource(250)

	if err := m.Update(context.Background(), source, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got, want := m.mmr.LeafCount(), uint64(250); got != want {
		t.Errorf("LeafCount() = %d, want %d", got, want)
	}

	stats := m.GetStats()
	if stats.LatestBlockNumber != 249 {
		t.Errorf("stats.LatestBlockNumber = %d, want 249", stats.LatestBlockNumber)
	}
	if stats.LatestRootHash == sentinelRootHash {
		t.Error("stats.LatestRootHash was never updated")
	}
}

func TestMaintainerUpdateIsIdempotent(t *testing.T) {
	m := newTestMaintainer(t)
	source := newFakeBlockSource(5)

	if err := m.Update(context.Background(), source, nil); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := m.Update(context.Background(), source, nil); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if got, want := m.mmr.LeafCount(), uint64(5); got != want {
		t.Errorf("LeafCount() after repeat Update = %d, want %d", got, want)
	}
}

func TestMaintainerUpdateHonorsCancellation(t *testing.T) {
	m := newTestMaintainer(t)
	source := newFakeBlockSource(10)

	var cancel atomic.Bool
	cancel.Store(true)

	if err := m.Update(context.Background(), source, &cancel); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := m.mmr.LeafCount(); got != 0 {
		t.Errorf("LeafCount() after cancelled Update = %d, want 0", got)
	}
}

func TestMaintainerGetProofAfterUpdate(t *testing.T) {
	m := newTestMaintainer(t)
	source := newFakeBlockSource(20)
	if err := m.Update(context.Background(), source, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	proof, err := m.GetProof(7)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}

	root, err := m.mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	ok, err := Verify(proof, root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify(GetProof(7)) = false, want true")
	}
}
