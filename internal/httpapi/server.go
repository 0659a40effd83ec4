// Package httpapi exposes the MMR maintainer over HTTP: a health check, a
// summary of the latest folded block and root, and per-block membership
// proofs.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"

	"github.com/jonathantxj/fossil-headers-db/internal/fossilmmr"
)

// shutdownPollInterval is how often the server checks the cancellation
// flag while waiting to shut down gracefully.
const shutdownPollInterval = 10 * time.Second

// MMRReader is the subset of *fossilmmr.Maintainer the router calls.
type MMRReader interface {
	GetStats() fossilmmr.Update
	GetProof(blockNumber int64) (fossilmmr.Proof, error)
}

// Server is the HTTP surface over an MMR maintainer.
type Server struct {
	addr   string
	reader MMRReader
	http   *http.Server
}

// New builds a Server listening on addr.
func New(addr string, reader MMRReader) *Server {
	s := &Server{addr: addr, reader: reader}

	router := chi.NewRouter()
	router.Get("/", s.handleHealthy)
	router.Get("/mmr", s.handleMMRLatest)
	router.Get("/mmr/{blocknumber}", s.handleMMRProof)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run starts the server and blocks until cancel is set, polling every
// shutdownPollInterval, at which point it shuts down gracefully.
func (s *Server) Run(ctx context.Context, cancel *atomic.Bool) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
			if cancel != nil && cancel.Load() {
				return s.shutdown()
			}
		}
	}
}

func (s *Server) shutdown() error {
	log.Info("Shutdown signal received, shutting down router")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("Error: " + err.Error()))
}

func (s *Server) handleHealthy(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Healthy"))
}

func (s *Server) handleMMRLatest(w http.ResponseWriter, r *http.Request) {
	log.Info("Received request for latest mmr")
	stats := s.reader.GetStats()
	writeJSON(w, updateResponse{
		LatestBlockNumber: stats.LatestBlockNumber,
		LatestRootHash:    stats.LatestRootHash,
		UpdateTimestamp:   stats.UpdateTimestamp,
	})
}

func (s *Server) handleMMRProof(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "blocknumber")
	blockNumber, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info("Received request for proof for block", "block", blockNumber)
	proof, err := s.reader.GetProof(blockNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newProofResponse(proof))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}
