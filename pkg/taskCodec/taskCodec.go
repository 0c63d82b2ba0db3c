// Package taskCodec maps between application values and the ledger's JSON
// encodings: vector<u8> as 0x-hex, u64 as decimal strings, Option<T> as
// {"vec": [...]}, and task records as either objects or positional arrays.
package taskCodec

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/unitConverter"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Field order of the positional task record returned by TaskFactory views.
var recordFields = []string{
	"title",
	"description",
	"creator",
	"budget",
	"deadline",
	"status",
	"participants",
	"winner",
	"dispute_deadline",
	"locked",
}

const zeroAddress = "0x0000000000000000000000000000000000000000000000000000000000000000"

// EncodeText returns the UTF-8 bytes of s. The empty string encodes to a
// non-nil empty slice, distinct from an absent value.
func EncodeText(s string) []byte {
	return append([]byte{}, s...)
}

// EncodeBytesArg renders bytes the way the ledger's JSON API expects a vector<u8> argument.
func EncodeBytesArg(b []byte) string {
	return hexutil.Encode(b)
}

func EncodeU64Arg(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// DecodeText accepts a Move String, a 0x-hex vector<u8> holding valid UTF-8,
// or a JSON array of byte values.
func DecodeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", malformed("text", err)
		}
		if strings.HasPrefix(s, "0x") {
			if b, err := hexutil.Decode(s); err == nil && utf8.Valid(b) {
				return string(b), nil
			}
		}
		return s, nil
	case '[':
		var values []int
		if err := json.Unmarshal(raw, &values); err != nil {
			return "", malformed("text", err)
		}
		b := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return "", taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeText", "byte value %d out of range", v)
			}
			b[i] = byte(v)
		}
		return string(b), nil
	}
	return "", taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeText", "unexpected text encoding %s", string(raw))
}

// DecodeStatus maps a ledger status code. Unknown codes are reported as Unknown(n).
func DecodeStatus(code uint8) types.TaskStatus {
	return types.StatusFromCode(code)
}

// ParseStatus decodes a JSON status value (number or numeric string).
func ParseStatus(raw json.RawMessage) (types.TaskStatus, error) {
	v, err := DecodeU64(raw)
	if err != nil {
		return types.TaskStatus{}, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeStatus", "non-numeric status %s", string(raw))
	}
	if v > 255 {
		return types.TaskStatus{}, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeStatus", "status %d is not a u8", v)
	}
	return DecodeStatus(uint8(v)), nil
}

// DecodeU64 accepts a JSON number or a decimal string.
func DecodeU64(raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	s := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, malformed("u64", err)
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, malformed("u64", err)
	}
	return v, nil
}

// NormalizeAddress lowercases an account address and left-pads it to 32 bytes.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "0x")
	if a == "" || len(a) > 64 {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	if _, err := hex.DecodeString(strings.Repeat("0", len(a)%2) + a); err != nil {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return "0x" + strings.Repeat("0", 64-len(a)) + a, nil
}

// ShortAddress renders 0x1234...abcd for display.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func malformed(what string, err error) error {
	return taskErrors.Wrap(taskErrors.KindMalformedLedgerData, "decode "+what, err)
}

// unwrapOption returns the inner value of a Move Option, or raw unchanged when it is not one.
// The second result is false for an empty option or JSON null.
func unwrapOption(raw json.RawMessage) (json.RawMessage, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	if raw[0] != '{' {
		return raw, true, nil
	}
	var opt struct {
		Vec []json.RawMessage `json:"vec"`
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return nil, false, malformed("option", err)
	}
	if len(opt.Vec) == 0 {
		return nil, false, nil
	}
	return opt.Vec[0], true, nil
}

func decodeAddress(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed("address", err)
	}
	a, err := NormalizeAddress(s)
	if err != nil {
		return "", malformed("address", err)
	}
	return a, nil
}

func toDisplay(octa uint64) string {
	return unitConverter.ToDisplayUnitsUint64(octa)
}
