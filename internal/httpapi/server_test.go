package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonathantxj/fossil-headers-db/internal/fossilmmr"
)

type fakeMMRReader struct {
	stats fossilmmr.Update
	proof fossilmmr.Proof
	err   error
}

func (f *fakeMMRReader) GetStats() fossilmmr.Update { return f.stats }

func (f *fakeMMRReader) GetProof(blockNumber int64) (fossilmmr.Proof, error) {
	if f.err != nil {
		return fossilmmr.Proof{}, f.err
	}
	return f.proof, nil
}

func newTestServer(reader MMRReader) *Server {
	return New("127.0.0.1:0", reader)
}

func TestHandleHealthy(t *testing.T) {
	s := newTestServer(&fakeMMRReader{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.http.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "Healthy" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "Healthy")
	}
}

func TestHandleMMRLatest(t *testing.T) {
	reader := &fakeMMRReader{stats: fossilmmr.Update{
		LatestBlockNumber: 42,
		LatestRootHash:    "0xabc",
		UpdateTimestamp:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	s := newTestServer(reader)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mmr", nil)
	s.http.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got updateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.LatestBlockNumber != 42 || got.LatestRootHash != "0xabc" {
		t.Errorf("got = %+v", got)
	}
}

func TestHandleMMRProof(t *testing.T) {
	reader := &fakeMMRReader{proof: fossilmmr.Proof{
		ElementIndex:  7,
		ElementHash:   fossilmmr.Hash{0x01},
		SiblingHashes: []fossilmmr.Hash{{0x02}, {0x03}},
		PeaksHashes:   []fossilmmr.Hash{{0x04}},
		ElementsCount: 10,
	}}
	s := newTestServer(reader)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mmr/3", nil)
	s.http.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got proofResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ElementIndex != "7" || got.ElementsCount != "10" {
		t.Errorf("got = %+v", got)
	}
}

func TestHandleMMRProofInvalidBlockNumber(t *testing.T) {
	s := newTestServer(&fakeMMRReader{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mmr/not-a-number", nil)
	s.http.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestHandleMMRProofUpstreamError(t *testing.T) {
	s := newTestServer(&fakeMMRReader{err: errTest{}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mmr/3", nil)
	s.http.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
