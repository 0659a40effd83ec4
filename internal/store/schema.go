package store

// createBlockheadersTableSQL and createTransactionsTableSQL mirror the
// column list in the data model: 66-char hashes and 42-char addresses kept
// as their native "0x"-prefixed form, wide (256-bit) numeric fields stored
// as hex strings wide enough for the value, and the handful of fields the
// ingester indexes or range-filters (number, gas_limit, gas_used,
// timestamp, difficulty) converted to bigint/timestamp columns.
const createBlockheadersTableSQL = `
CREATE TABLE IF NOT EXISTS blockheaders (
	block_hash                VARCHAR(66) PRIMARY KEY,
	number                    BIGINT NOT NULL,
	parent_hash               VARCHAR(66) NOT NULL,
	author                    VARCHAR(42) NOT NULL,
	beneficiary               VARCHAR(42) NOT NULL,
	gas_limit                 BIGINT NOT NULL,
	gas_used                  BIGINT NOT NULL,
	timestamp                 TIMESTAMP WITHOUT TIME ZONE NOT NULL,
	extra_data                BYTEA,
	difficulty                BIGINT,
	mix_hash                  VARCHAR(66),
	nonce                     VARCHAR(34),
	uncles_hash               VARCHAR(66) NOT NULL,
	transaction_root          VARCHAR(66) NOT NULL,
	receipts_root             VARCHAR(66) NOT NULL,
	state_root                VARCHAR(66) NOT NULL,
	base_fee_per_gas          VARCHAR(78),
	withdrawals_root          VARCHAR(66),
	parent_beacon_block_root  VARCHAR(66),
	blob_gas_used             VARCHAR(78),
	excess_blob_gas           VARCHAR(78),
	total_difficulty          VARCHAR(78),
	step                      VARCHAR(78),
	signature                 BYTEA
)`

const createTransactionsTableSQL = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_hash        VARCHAR(66) PRIMARY KEY,
	block_number            BIGINT NOT NULL,
	block_hash               VARCHAR(66) NOT NULL REFERENCES blockheaders(block_hash),
	nonce                    VARCHAR(78) NOT NULL,
	transaction_index        BIGINT NOT NULL,
	from_addr                VARCHAR(42),
	to_addr                  VARCHAR(42),
	value                    VARCHAR(78) NOT NULL,
	gas_price                VARCHAR(78) NOT NULL,
	max_priority_fee_per_gas VARCHAR(78),
	max_fee_per_gas          VARCHAR(78),
	gas                      VARCHAR(78) NOT NULL,
	input                    BYTEA,
	chain_id                 VARCHAR(78),
	type                     BIGINT NOT NULL,
	v                        VARCHAR(78) NOT NULL,
	mint                     VARCHAR(78),
	source_hash              VARCHAR(66)
)`

const createBlockNumberIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_blockheaders_number ON blockheaders (number)`

const createTransactionsBlockHashIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_transactions_block_hash ON transactions (block_hash)`
