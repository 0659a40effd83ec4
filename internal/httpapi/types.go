package httpapi

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/jonathantxj/fossil-headers-db/internal/fossilmmr"
)

// updateResponse is the wire shape for GET /mmr.
type updateResponse struct {
	LatestBlockNumber int64     `json:"latest_blocknumber"`
	LatestRootHash    string    `json:"latest_roothash"`
	UpdateTimestamp   time.Time `json:"update_timestamp"`
}

// proofResponse is the wire shape for GET /mmr/{blocknumber}: every field
// stringified, matching the original service's response shape so existing
// clients don't need to special-case large numeric strings.
type proofResponse struct {
	ElementIndex  string `json:"element_index"`
	ElementHash   string `json:"element_hash"`
	SiblingHashes string `json:"sibling_hashes"`
	PeaksHashes   string `json:"peaks_hashes"`
	ElementsCount string `json:"elements_count"`
}

func newProofResponse(proof fossilmmr.Proof) proofResponse {
	siblingHashes := make([]string, len(proof.SiblingHashes))
	for i, h := range proof.SiblingHashes {
		siblingHashes[i] = h.String()
	}
	peaksHashes := make([]string, len(proof.PeaksHashes))
	for i, h := range proof.PeaksHashes {
		peaksHashes[i] = h.String()
	}

	siblingJSON, _ := json.Marshal(siblingHashes)
	peaksJSON, _ := json.Marshal(peaksHashes)

	return proofResponse{
		ElementIndex:  strconv.FormatUint(proof.ElementIndex, 10),
		ElementHash:   proof.ElementHash.String(),
		SiblingHashes: string(siblingJSON),
		PeaksHashes:   string(peaksJSON),
		ElementsCount: strconv.FormatUint(proof.ElementsCount, 10),
	}
}
