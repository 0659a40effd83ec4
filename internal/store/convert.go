package store

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// stripHex removes a leading "0x"/"0X" prefix, if present.
func stripHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// hexToInt64 converts a "0x"-prefixed big-endian hex string into a signed
// 64-bit integer. It is the Go counterpart of the original source's
// convert_hex_string_to_i64, used for every field the store must index or
// range-filter (number, gas_limit, gas_used, timestamp, difficulty).
func hexToInt64(field, value string) (int64, error) {
	trimmed := stripHex(value)
	if trimmed == "" {
		trimmed = "0"
	}
	n, err := strconv.ParseInt(trimmed, 16, 64)
	if err != nil {
		return 0, &ErrStoreEncode{Field: field, Value: value, Err: err}
	}
	return n, nil
}

// hexToBytes decodes a "0x"-prefixed hex string into raw bytes, for bytea
// columns (extra_data, input, signature).
func hexToBytes(field, value string) ([]byte, error) {
	trimmed := stripHex(value)
	if len(trimmed)%2 == 1 {
		trimmed = "0" + trimmed
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &ErrStoreEncode{Field: field, Value: value, Err: err}
	}
	return b, nil
}

// normalizeWideHexString strips the 0x prefix from the wide-integer fields
// (total_difficulty, base_fee_per_gas, step, value, gas price/fee fields)
// that are stored as plain hex strings wide enough for 256-bit values
// rather than converted to int64. Identity fields (block_hash, parent_hash,
// addresses, transaction_hash) keep their native "0x"-prefixed, fixed-width
// form and are not passed through this function.
func normalizeWideHexString(s string) string {
	return strings.ToLower(stripHex(s))
}

// normalizeWideHexStringPtr is the pointer-aware counterpart of
// normalizeWideHexString, for the optional wide-integer fields
// (base_fee_per_gas, step) that are absent on pre-London/non-POA headers.
func normalizeWideHexStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := normalizeWideHexString(*s)
	return &v
}
