package fossilmmr

import "fmt"

// ErrOutOfSequence reports a hard invariant failure: the block store
// handed the maintainer a block number that does not immediately follow
// the MMR's current tail. It is fatal for the current update pass.
type ErrOutOfSequence struct {
	Expected int64
	Got      int64
}

func (e *ErrOutOfSequence) Error() string {
	return fmt.Sprintf("fossilmmr: out of sequence: expected block %d, got %d", e.Expected, e.Got)
}
