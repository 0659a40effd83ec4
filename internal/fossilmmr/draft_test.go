package fossilmmr

import "testing"

func TestDraftCommitMatchesDirectAppend(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 3; i++ {
		if _, err := mmr.Append(leafHash(t, i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	draft := mmr.StartDraft()
	result, err := draft.Append(leafHash(t, 9))
	if err != nil {
		t.Fatalf("draft Append: %v", err)
	}
	if err := draft.Commit(); err != nil {
		t.Fatalf("draft Commit: %v", err)
	}

	root, err := mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if root != result.RootHash {
		t.Errorf("root after commit = %s, want %s", root, result.RootHash)
	}
	if got, want := mmr.LeafCount(), uint64(4); got != want {
		t.Errorf("LeafCount() after commit = %d, want %d", got, want)
	}
}

func TestDraftDiscardLeavesMMRUntouched(t *testing.T) {
	mmr := newTestMMR(t)
	for i := byte(0); i < 3; i++ {
		if _, err := mmr.Append(leafHash(t, i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	before, err := mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	beforeCount := mmr.ElementsCount()

	draft := mmr.StartDraft()
	if _, err := draft.Append(leafHash(t, 42)); err != nil {
		t.Fatalf("draft Append: %v", err)
	}
	draft.Discard()

	after, err := mmr.RootHash()
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if after != before {
		t.Errorf("root changed after discarding a draft: before=%s after=%s", before, after)
	}
	if mmr.ElementsCount() != beforeCount {
		t.Errorf("elements count changed after discarding a draft: before=%d after=%d", beforeCount, mmr.ElementsCount())
	}
}

func TestDraftCannotCommitTwice(t *testing.T) {
	mmr := newTestMMR(t)
	draft := mmr.StartDraft()
	if _, err := draft.Append(leafHash(t, 1)); err != nil {
		t.Fatalf("draft Append: %v", err)
	}
	if err := draft.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := draft.Commit(); err == nil {
		t.Error("second Commit on an already-committed draft did not error")
	}
}

func TestDraftAppendOnlyAllowsOnePending(t *testing.T) {
	mmr := newTestMMR(t)
	draft := mmr.StartDraft()
	if _, err := draft.Append(leafHash(t, 1)); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if _, err := draft.Append(leafHash(t, 2)); err == nil {
		t.Error("second Append on the same draft did not error")
	}
}
