package fossilmmr

import "fmt"

// Draft is a copy-on-write staging view of the MMR: it computes a single
// speculative append against the live state without persisting anything,
// letting the caller inspect the assigned element index before deciding
// whether to Commit or Discard. This is the re-architected form of "try
// an append speculatively and roll back on mismatch" the maintainer uses
// to verify the first block of a batch lines up with the MMR's tail.
type Draft struct {
	mmr     *MMR
	pending map[uint64]Hash
	newSize uint64
	result  AppendResult
	done    bool
}

// StartDraft begins a draft on top of the MMR's current state.
func (m *MMR) StartDraft() *Draft {
	return &Draft{mmr: m}
}

// Append computes the speculative append and returns the same
// AppendResult a committed Append would, without persisting anything.
func (d *Draft) Append(leafHash Hash) (AppendResult, error) {
	if d.pending != nil {
		return AppendResult{}, fmt.Errorf("fossilmmr: draft already holds a pending append")
	}
	pending, size, err := d.mmr.computeAppend(leafHash)
	if err != nil {
		return AppendResult{}, err
	}
	prevCount := d.mmr.elementsCount
	d.mmr.elementsCount = size
	root, err := d.mmr.rootHash(pending)
	d.mmr.elementsCount = prevCount
	if err != nil {
		return AppendResult{}, err
	}

	d.pending = pending
	d.newSize = size
	d.result = AppendResult{ElementIndex: d.mmr.elementsCount + 1, RootHash: root}
	return d.result, nil
}

// Commit persists the draft's pending append and advances the underlying
// MMR's elements_count.
func (d *Draft) Commit() error {
	if d.done {
		return fmt.Errorf("fossilmmr: draft already committed or discarded")
	}
	if d.pending == nil {
		return fmt.Errorf("fossilmmr: draft has no pending append to commit")
	}
	if err := d.mmr.store.setNodes(d.pending, d.newSize); err != nil {
		return fmt.Errorf("fossilmmr: draft commit: %w", err)
	}
	d.mmr.elementsCount = d.newSize
	d.done = true
	return nil
}

// Discard drops the draft's speculative append; the underlying MMR is
// left untouched.
func (d *Draft) Discard() {
	d.done = true
	d.pending = nil
}
