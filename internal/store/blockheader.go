package store

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jmoiron/sqlx"

	"github.com/jonathantxj/fossil-headers-db/internal/chainrpc"
)

// WriteBlockHeader atomically commits one header and all of its
// transactions: insert the header with ON CONFLICT (block_hash) DO
// NOTHING; if zero rows were affected, log and commit empty; otherwise
// bulk-insert the transaction rows with ON CONFLICT (transaction_hash) DO
// NOTHING. The at-most-once header insert combined with DO NOTHING makes
// this operation idempotent under retry.
func (s *Store) WriteBlockHeader(ctx context.Context, header *chainrpc.BlockHeader) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &ErrStoreTransport{Op: "write_blockheader:begin", Err: err}
	}
	defer tx.Rollback()

	affected, err := insertHeader(ctx, tx, header)
	if err != nil {
		return err
	}

	if affected == 0 {
		log.Warn("Block header already exists", "hash", header.Hash)
	} else {
		log.Info("Inserted block header", "hash", header.Hash, "number", header.Number)
		if len(header.Transactions) > 0 {
			n, err := insertTransactions(ctx, tx, header.Transactions)
			if err != nil {
				return err
			}
			log.Info("Inserted transactions for block", "count", n, "hash", header.Hash)
		}
	}

	if err := tx.Commit(); err != nil {
		return &ErrStoreTransport{Op: "write_blockheader:commit", Err: err}
	}
	return nil
}

func insertHeader(ctx context.Context, tx *sqlx.Tx, h *chainrpc.BlockHeader) (int64, error) {
	number, err := hexToInt64("number", h.Number)
	if err != nil {
		return 0, err
	}
	gasLimit, err := hexToInt64("gas_limit", h.GasLimit)
	if err != nil {
		return 0, err
	}
	gasUsed, err := hexToInt64("gas_used", h.GasUsed)
	if err != nil {
		return 0, err
	}
	timestampSecs, err := hexToInt64("timestamp", h.Timestamp)
	if err != nil {
		return 0, err
	}
	ts := time.Unix(timestampSecs, 0).UTC()

	difficulty, err := hexToInt64("difficulty", h.Difficulty)
	if err != nil {
		return 0, err
	}

	extraData, err := hexToBytes("extra_data", h.ExtraData)
	if err != nil {
		return 0, err
	}
	var signature []byte
	if h.Signature != nil {
		signature, err = hexToBytes("signature", *h.Signature)
		if err != nil {
			return 0, err
		}
	}

	baseFeePerGas := normalizeWideHexStringPtr(h.BaseFeePerGas)
	step := normalizeWideHexStringPtr(h.Step)
	totalDifficulty := normalizeWideHexString(h.TotalDifficulty)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO blockheaders (
			author, block_hash, number, parent_hash, beneficiary, gas_limit, gas_used,
			timestamp, extra_data, difficulty, mix_hash, nonce, uncles_hash,
			transaction_root, receipts_root, state_root, base_fee_per_gas,
			withdrawals_root, parent_beacon_block_root, blob_gas_used,
			excess_blob_gas, total_difficulty, step, signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24)
		ON CONFLICT (block_hash) DO NOTHING`,
		h.Author, h.Hash, number, h.ParentHash, h.Author, gasLimit, gasUsed,
		ts, extraData, difficulty, h.MixHash, h.Nonce, h.Sha3Uncles,
		h.TransactionsRoot, h.ReceiptsRoot, h.StateRoot, baseFeePerGas,
		h.WithdrawalsRoot, h.ParentBeaconBlockRoot, h.BlobGasUsed,
		h.ExcessBlobGas, totalDifficulty, step, signature,
	)
	if err != nil {
		return 0, &ErrStoreConflict{Op: "write_blockheader:insert_header", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, &ErrStoreTransport{Op: "write_blockheader:rows_affected", Err: err}
	}
	return affected, nil
}

func insertTransactions(ctx context.Context, tx *sqlx.Tx, txs []chainrpc.Transaction) (int64, error) {
	query := `INSERT INTO transactions (
		block_number, block_hash, transaction_hash, mint, source_hash, nonce,
		transaction_index, from_addr, to_addr, value, gas_price, max_priority_fee_per_gas,
		max_fee_per_gas, gas, input, chain_id, type, v
	) VALUES `

	args := make([]any, 0, len(txs)*18)
	for i, t := range txs {
		blockNumber, err := hexToInt64("block_number", t.BlockNumber)
		if err != nil {
			return 0, err
		}
		txIndex, err := hexToInt64("transaction_index", t.TransactionIndex)
		if err != nil {
			return 0, err
		}
		txType, err := hexToInt64("type", t.Type)
		if err != nil {
			return 0, err
		}
		input, err := hexToBytes("input", t.Input)
		if err != nil {
			return 0, err
		}

		if i > 0 {
			query += ", "
		}
		base := i * 18
		query += placeholderGroup(base+1, 18)
		args = append(args,
			blockNumber, t.BlockHash, t.Hash, t.Mint, t.SourceHash, t.Nonce,
			txIndex, t.From, t.To, normalizeWideHexString(t.Value), normalizeWideHexString(t.GasPrice),
			normalizeWideHexStringPtr(t.MaxPriorityFeePerGas), normalizeWideHexStringPtr(t.MaxFeePerGas), normalizeWideHexString(t.Gas), input, t.ChainID, txType, t.V,
		)
	}
	query += " ON CONFLICT (transaction_hash) DO NOTHING"

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &ErrStoreConflict{Op: "write_blockheader:insert_transactions", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, &ErrStoreTransport{Op: "write_blockheader:rows_affected", Err: err}
	}
	return affected, nil
}

func placeholderGroup(start, count int) string {
	group := "("
	for i := 0; i < count; i++ {
		if i > 0 {
			group += ", "
		}
		group += "$" + strconv.Itoa(start+i)
	}
	return group + ")"
}
