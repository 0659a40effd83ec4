package chainrpc

import "encoding/json"

// Transaction is the wire shape of a transaction embedded in a full block
// response. Every numeric/hash field stays a hex string at this layer; the
// block store is responsible for converting what it needs to index.
type Transaction struct {
	Hash                 string  `json:"hash"`
	Nonce                string  `json:"nonce"`
	BlockHash            string  `json:"blockHash"`
	BlockNumber          string  `json:"blockNumber"`
	TransactionIndex     string  `json:"transactionIndex"`
	Value                string  `json:"value"`
	GasPrice             string  `json:"gasPrice"`
	Gas                  string  `json:"gas"`
	Input                string  `json:"input"`
	Type                 string  `json:"type"`
	V                    string  `json:"v"`
	From                 *string `json:"from"`
	To                   *string `json:"to"`
	MaxPriorityFeePerGas *string `json:"maxPriorityFeePerGas"`
	MaxFeePerGas         *string `json:"maxFeePerGas"`
	ChainID              *string `json:"chainId"`
	Mint                 *string `json:"mint"`
	SourceHash           *string `json:"sourceHash"`
}

// BlockHeader is the wire shape of eth_getBlockByNumber's result. The Rust
// original keeps two near-identical structs depending on whether
// transactions were requested (BlockHeaderWithEmptyTransaction /
// BlockHeaderWithFullTransaction); Go collapses them into one type with an
// optional Transactions field, set only when the caller asked for full
// blocks (see Design Note in DESIGN.md on duplicate/legacy code collapse).
type BlockHeader struct {
	Author                string        `json:"author"`
	Difficulty            string        `json:"difficulty"`
	ExtraData             string        `json:"extraData"`
	GasLimit              string        `json:"gasLimit"`
	GasUsed               string        `json:"gasUsed"`
	Hash                  string        `json:"hash"`
	Miner                 string        `json:"miner"`
	MixHash               *string       `json:"mixHash"`
	Nonce                 *string       `json:"nonce"`
	Number                string        `json:"number"`
	ParentHash            string        `json:"parentHash"`
	ReceiptsRoot          string        `json:"receiptsRoot"`
	Sha3Uncles            string        `json:"sha3Uncles"`
	StateRoot             string        `json:"stateRoot"`
	TotalDifficulty       string        `json:"totalDifficulty"`
	Timestamp             string        `json:"timestamp"`
	TransactionsRoot      string        `json:"transactionsRoot"`
	Transactions          []Transaction `json:"transactions,omitempty"`
	BaseFeePerGas         *string       `json:"baseFeePerGas"`
	WithdrawalsRoot       *string       `json:"withdrawalsRoot"`
	BlobGasUsed           *string       `json:"blobGasUsed"`
	ExcessBlobGas         *string       `json:"excessBlobGas"`
	ParentBeaconBlockRoot *string       `json:"parentBeaconBlockRoot"`
	Step                  *string       `json:"step"`
	Signature             *string       `json:"signature"`
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
