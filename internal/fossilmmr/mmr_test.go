package fossilmmr

import (
	"path/filepath"
	"testing"
)

func newTestMMR(t *testing.T) *MMR {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmr.db")
	store, err := openNodeStore(path)
	if err != nil {
		t.Fatalf("openNodeStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mmr, err := newMMR(store)
	if err != nil {
		t.Fatalf("newMMR: %v", err)
	}
	return mmr
}

func leafHash(t *testing.T, seed byte) Hash {
	t.Helper()
	var h Hash
	h[0] = seed
	return h
}

func TestAppendGrowsLeafCount(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 7; i++ {
		if _, err := mmr.Append(leafHash(t, i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if got, want := mmr.LeafCount(), uint64(7); got != want {
		t.Errorf("LeafCount() = %d, want %d", got, want)
	}
}

func TestAppendElementIndexesMatchLeafMapping(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 5; i++ {
		result, err := mmr.Append(leafHash(t, i))
		if err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		if got, want := result.ElementIndex, leafIndexToElementIndex(uint64(i)); got != want {
			t.Errorf("Append(%d).ElementIndex = %d, want %d", i, got, want)
		}
	}
}

func TestRootHashChangesOnAppend(t *testing.T) {
	mmr := newTestMMR(t)
	r1, err := mmr.Append(leafHash(t, 1))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	r2, err := mmr.Append(leafHash(t, 2))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if r1.RootHash == r2.RootHash {
		t.Error("root hash did not change after appending a second leaf")
	}

	current, err := mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if current != r2.RootHash {
		t.Errorf("RootHash() = %s, want %s (last Append's root)", current, r2.RootHash)
	}
}

func TestGetProofVerifies(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 11; i++ {
		if _, err := mmr.Append(leafHash(t, i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	root, err := mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}

	for leafIndex := uint64(0); leafIndex < 11; leafIndex++ {
		proof, err := mmr.GetProof(leafIndex)
		if err != nil {
			t.Fatalf("GetProof(%d): %v", leafIndex, err)
		}
		ok, err := Verify(proof, root)
		if err != nil {
			t.Fatalf("Verify(leaf %d): %v", leafIndex, err)
		}
		if !ok {
			t.Errorf("Verify(leaf %d) = false, want true", leafIndex)
		}
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 6; i++ {
		if _, err := mmr.Append(leafHash(t, i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	proof, err := mmr.GetProof(2)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}

	ok, err := Verify(proof, Hash{0xff})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify against a mismatched root returned true")
	}
}

func TestGetProofOutOfRange(t *testing.T) {
	mmr := newTestMMR(t)
	if _, err := mmr.Append(leafHash(t, 0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := mmr.GetProof(5); err == nil {
		t.Error("GetProof with an out-of-range leaf index did not error")
	}
}
