// Package fossilmmr maintains an append-only Merkle Mountain Range (MMR)
// over the canonical sequence of block hashes, persisted in a bbolt file.
// The position arithmetic and bagging algorithm are implemented from
// first principles (see arithmetic.go); nothing here ports a library,
// since no Go MMR library exists anywhere in the retrieved reference
// corpus.
package fossilmmr

import "fmt"

// AppendResult is returned by Append: the 1-based element index assigned
// to the newly appended leaf (before any of its own cascading merges) and
// the MMR's new root hash after the append (and its merges) completed.
type AppendResult struct {
	ElementIndex uint64
	RootHash     Hash
}

// Proof is a membership proof for one leaf: the sibling path from the
// leaf to its containing peak, plus every current peak (for bagging
// verification against the root), and the elements_count the proof was
// generated against.
type Proof struct {
	ElementIndex  uint64
	ElementHash   Hash
	SiblingHashes []Hash
	PeaksHashes   []Hash
	ElementsCount uint64
}

// MMR is the in-process accumulator state: a node store plus the running
// elements_count. It is not safe for concurrent use on its own — callers
// needing concurrency safety use Maintainer, which serializes access
// behind a mutex.
type MMR struct {
	store         *nodeStore
	elementsCount uint64
}

func newMMR(store *nodeStore) (*MMR, error) {
	count, err := store.getElementsCount()
	if err != nil {
		return nil, err
	}
	return &MMR{store: store, elementsCount: count}, nil
}

// ElementsCount returns the total number of nodes (leaves + internal
// peaks) currently in the MMR.
func (m *MMR) ElementsCount() uint64 {
	return m.elementsCount
}

// LeafCount returns the number of leaves appended so far.
func (m *MMR) LeafCount() uint64 {
	return elementsCountToLeafCount(m.elementsCount)
}

// Append adds one leaf hash to the accumulator, performing whatever
// cascading merges the new leaf triggers, and returns the leaf's element
// index plus the resulting root hash.
func (m *MMR) Append(leafHash Hash) (AppendResult, error) {
	pending, size, err := m.computeAppend(leafHash)
	if err != nil {
		return AppendResult{}, err
	}

	leafPos := m.elementsCount
	if err := m.store.setNodes(pending, size); err != nil {
		return AppendResult{}, fmt.Errorf("fossilmmr: append: persisting nodes: %w", err)
	}
	m.elementsCount = size

	root, err := m.rootHash(pending)
	if err != nil {
		return AppendResult{}, err
	}

	return AppendResult{ElementIndex: leafPos + 1, RootHash: root}, nil
}

// computeAppend runs the append algorithm against the current state
// without persisting anything, returning every node the append would
// write (including cascading merge parents) and the resulting
// elements_count. Shared by Append and Draft so a speculative append can
// be computed, inspected, and discarded without touching the store.
func (m *MMR) computeAppend(leafHash Hash) (map[uint64]Hash, uint64, error) {
	leafIndex := m.LeafCount()
	leafPos := m.elementsCount

	pending := map[uint64]Hash{leafPos: leafHash}
	currentPos := leafPos
	currentHash := leafHash
	height := uint64(0)
	size := leafPos + 1

	merges := mergesForAppend(leafIndex)
	for i := uint64(0); i < merges; i++ {
		leftPos := currentPos + 1 - (uint64(1) << (height + 1))
		leftHash, ok := pending[leftPos]
		if !ok {
			var err error
			leftHash, err = m.store.getNode(leftPos)
			if err != nil {
				return nil, 0, fmt.Errorf("fossilmmr: append: %w", err)
			}
		}
		parentPos := size
		parentHash := hashParent(leftHash, currentHash)
		pending[parentPos] = parentHash

		size++
		currentPos = parentPos
		currentHash = parentHash
		height++
	}

	return pending, size, nil
}

// rootHash bags all current peaks into a single root, right-to-left.
// recent is an optional map of not-yet-flushed node values to prefer over
// the store (used right after Append, before a second read round-trip).
func (m *MMR) rootHash(recent map[uint64]Hash) (Hash, error) {
	leafCount := elementsCountToLeafCount(m.elementsCount)
	if leafCount == 0 {
		return Hash{}, nil
	}
	peaks := peaksForLeafCount(leafCount)

	hashes := make([]Hash, len(peaks))
	for i, p := range peaks {
		if h, ok := recent[p.pos]; ok {
			hashes[i] = h
			continue
		}
		h, err := m.store.getNode(p.pos)
		if err != nil {
			return Hash{}, fmt.Errorf("fossilmmr: bagging root: %w", err)
		}
		hashes[i] = h
	}

	acc := hashes[len(hashes)-1]
	for i := len(hashes) - 2; i >= 0; i-- {
		acc = hashParent(hashes[i], acc)
	}
	return acc, nil
}

// RootHash recomputes and returns the current root.
func (m *MMR) RootHash() (Hash, error) {
	return m.rootHash(nil)
}

// GetProof builds a membership proof for the leafIndex-th (0-based) leaf.
func (m *MMR) GetProof(leafIndex uint64) (Proof, error) {
	leafCount := elementsCountToLeafCount(m.elementsCount)
	if leafIndex >= leafCount {
		return Proof{}, fmt.Errorf("fossilmmr: leaf index %d out of range (have %d leaves)", leafIndex, leafCount)
	}

	leafPos := leafIndexToPos(leafIndex)
	elementHash, err := m.store.getNode(leafPos)
	if err != nil {
		return Proof{}, fmt.Errorf("fossilmmr: get_proof: %w", err)
	}

	peaks := peaksForLeafCount(leafCount)
	var containing *peak
	var offset uint64
	for i := range peaks {
		p := &peaks[i]
		size := (uint64(1) << (p.height + 1)) - 1
		if leafPos >= offset && leafPos <= p.pos {
			containing = p
			break
		}
		offset += size
	}
	if containing == nil {
		return Proof{}, fmt.Errorf("fossilmmr: get_proof: leaf position %d not found under any peak", leafPos)
	}

	siblings, err := m.siblingPath(leafPos, offset, containing.height)
	if err != nil {
		return Proof{}, fmt.Errorf("fossilmmr: get_proof: %w", err)
	}

	peakHashes := make([]Hash, len(peaks))
	for i, p := range peaks {
		h, err := m.store.getNode(p.pos)
		if err != nil {
			return Proof{}, fmt.Errorf("fossilmmr: get_proof: reading peak: %w", err)
		}
		peakHashes[i] = h
	}

	return Proof{
		ElementIndex:  leafIndexToElementIndex(leafIndex),
		ElementHash:   elementHash,
		SiblingHashes: siblings,
		PeaksHashes:   peakHashes,
		ElementsCount: m.elementsCount,
	}, nil
}

// siblingPath walks from leafPos up to the root of the perfect subtree of
// the given height starting at subtreeOffset, returning the sibling hash
// at each level, ordered leaf-to-peak (deepest sibling first).
func (m *MMR) siblingPath(leafPos, subtreeOffset, subtreeHeight uint64) ([]Hash, error) {
	if subtreeHeight == 0 {
		return nil, nil
	}
	childSize := (uint64(1) << subtreeHeight) - 1
	leftOffset := subtreeOffset
	leftRootPos := leftOffset + childSize - 1
	rightOffset := leftOffset + childSize
	rightRootPos := rightOffset + childSize - 1

	if leafPos <= leftRootPos {
		siblingHash, err := m.store.getNode(rightRootPos)
		if err != nil {
			return nil, err
		}
		rest, err := m.siblingPath(leafPos, leftOffset, subtreeHeight-1)
		if err != nil {
			return nil, err
		}
		return append(rest, siblingHash), nil
	}

	siblingHash, err := m.store.getNode(leftRootPos)
	if err != nil {
		return nil, err
	}
	rest, err := m.siblingPath(leafPos, rightOffset, subtreeHeight-1)
	if err != nil {
		return nil, err
	}
	return append(rest, siblingHash), nil
}

// siblingDirections mirrors siblingPath's recursion but returns, for each
// level (deepest first, matching SiblingHashes order), whether the leaf's
// branch is the right child of that level (true) or the left (false).
func siblingDirections(leafPos, subtreeOffset, subtreeHeight uint64) []bool {
	if subtreeHeight == 0 {
		return nil
	}
	childSize := (uint64(1) << subtreeHeight) - 1
	leftRootPos := subtreeOffset + childSize - 1

	if leafPos <= leftRootPos {
		rest := siblingDirections(leafPos, subtreeOffset, subtreeHeight-1)
		return append(rest, false)
	}
	rightOffset := subtreeOffset + childSize
	rest := siblingDirections(leafPos, rightOffset, subtreeHeight-1)
	return append(rest, true)
}

// Verify recomputes the root implied by a proof and compares it against
// expectedRoot. It is the counterpart the HTTP surface does not expose
// (the wire Proof has no direction bits), used by tests and by anything
// in-process that wants to double-check a proof before trusting it.
func Verify(proof Proof, expectedRoot Hash) (bool, error) {
	leafIndex := elementIndexToLeafIndex(proof.ElementIndex)
	pos := leafIndexToPos(leafIndex)

	// Re-derive which peak this leaf belongs to and its offset, exactly as
	// GetProof did, so the sibling hashes can be folded in the same order.
	leafCount := elementsCountToLeafCount(proof.ElementsCount)
	peaks := peaksForLeafCount(leafCount)

	var height, offset uint64
	containingIdx := -1
	off := uint64(0)
	for i := range peaks {
		p := &peaks[i]
		size := (uint64(1) << (p.height + 1)) - 1
		if pos >= off && pos <= p.pos {
			height, offset, containingIdx = p.height, off, i
			break
		}
		off += size
	}
	if containingIdx == -1 {
		return false, fmt.Errorf("fossilmmr: verify: element index %d not covered by any peak", proof.ElementIndex)
	}

	directions := siblingDirections(pos, offset, height)
	if len(directions) != len(proof.SiblingHashes) {
		return false, fmt.Errorf("fossilmmr: verify: expected %d siblings, proof has %d", len(directions), len(proof.SiblingHashes))
	}

	acc := proof.ElementHash
	for i, sibling := range proof.SiblingHashes {
		if directions[i] {
			acc = hashParent(sibling, acc)
		} else {
			acc = hashParent(acc, sibling)
		}
	}

	if len(proof.PeaksHashes) != len(peaks) {
		return false, fmt.Errorf("fossilmmr: verify: expected %d peaks, proof has %d", len(peaks), len(proof.PeaksHashes))
	}
	if proof.PeaksHashes[containingIdx] != acc {
		return false, nil
	}

	computedRoot := proof.PeaksHashes[len(proof.PeaksHashes)-1]
	for i := len(proof.PeaksHashes) - 2; i >= 0; i-- {
		computedRoot = hashParent(proof.PeaksHashes[i], computedRoot)
	}

	return computedRoot == expectedRoot, nil
}
