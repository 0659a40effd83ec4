// Package store is the durable block store: schema management, the
// idempotent transactional writer, and the gap/tip queries the ingestion
// engine and MMR maintainer read from.
package store

import (
	"context"
	"database/sql"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// MaxGapWindow bounds how large a single find_first_gap query may scan, so
// database planning and memory stay cheap. Callers windowing a larger
// range must loop, as the ingestion engine's fix mode does.
const MaxGapWindow = 100_000

// Store wraps a Postgres connection pool with the operations spec.md's
// block store contract names.
type Store struct {
	db *sqlx.DB
}

// Open builds a Store against dsn, bounding the pool at maxConns. Open is
// cheap to call once at process startup; the pool itself is the lazily
// connecting resource underneath sqlx/lib/pq.
func Open(dsn string, maxConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, &ErrStoreTransport{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	log.Info("Opened block store connection pool", "maxConns", maxConns)
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTables idempotently creates the blockheaders and transactions
// tables plus their supporting indexes. Safe to call at every start.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range []string{
		createBlockheadersTableSQL,
		createTransactionsTableSQL,
		createBlockNumberIndexSQL,
		createTransactionsBlockHashIndexSQL,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &ErrSchemaError{Op: "create_tables", Err: err}
		}
	}
	log.Debug("Ensured block store schema")
	return nil
}

// GetLastStoredBlockNumber returns max(number) across blockheaders, or -1
// if the table is empty. The sentinel -1 means "no data"; callers
// translate it to "start from 0" or "nothing to do" as appropriate.
func (s *Store) GetLastStoredBlockNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COALESCE(MAX(number), -1) FROM blockheaders")
	if err != nil {
		return 0, &ErrStoreTransport{Op: "get_last_stored_blocknumber", Err: err}
	}
	return n, nil
}

// FindFirstGap returns the smallest block number n in [start, end] with no
// row present, or (0, false) if every number in the range is present.
// end-start is expected to be bounded by MaxGapWindow by the caller.
func (s *Store) FindFirstGap(ctx context.Context, start, end int64) (int64, bool, error) {
	const query = `
		WITH RECURSIVE number_series(n) AS (
			SELECT $1::bigint
			UNION ALL
			SELECT n + 1 FROM number_series WHERE n < $2
		)
		SELECT n FROM number_series
		WHERE n NOT IN (SELECT number FROM blockheaders WHERE number BETWEEN $1 AND $2)
		LIMIT 1`

	var n int64
	err := s.db.GetContext(ctx, &n, query, start, end)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &ErrStoreTransport{Op: "find_first_gap", Err: err}
	}
	return n, true, nil
}

// BlockDetails is the leaf payload the MMR maintainer reads: just enough
// to append a hash at the right position and verify block-number order.
type BlockDetails struct {
	BlockHash string `db:"block_hash"`
	Number    int64  `db:"number"`
}

// GetBlockHeaders returns at most limit rows with number >= start, ordered
// ascending. Used exclusively by the MMR maintainer.
func (s *Store) GetBlockHeaders(ctx context.Context, start int64, limit int) ([]BlockDetails, error) {
	var rows []BlockDetails
	err := s.db.SelectContext(ctx, &rows,
		`SELECT block_hash, number FROM blockheaders WHERE number >= $1 ORDER BY number ASC LIMIT $2`,
		start, limit)
	if err != nil {
		return nil, &ErrStoreTransport{Op: "get_blockheaders", Err: err}
	}
	return rows, nil
}
