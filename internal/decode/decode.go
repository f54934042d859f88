// Package decode turns raw ABI-encoded event data into the structs this
// indexer persists, without depending on an ABI — every event is decoded by
// its fixed 32-byte word layout.
package decode

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const wordHexLen = 64

// SrcEscrowCreated is the word layout 1inch Fusion+'s factory emits when an
// escrow is created on the source chain.
type SrcEscrowCreated struct {
	OrderHash        string
	Hashlock         string
	SrcMaker         string
	SrcTaker         string
	SrcToken         string
	SrcAmount        string
	SrcSafetyDeposit string
	SrcTimelocks     string
	DstMaker         string
	DstAmount        string
	DstToken         string
	DstSafetyDeposit string
	DstChainID       uint32
}

// DstEscrowCreated is the word layout emitted on the destination chain.
type DstEscrowCreated struct {
	OrderHash        string
	Hashlock         string
	DstMaker         string
	DstTaker         string
	DstToken         string
	DstAmount        string
	DstSafetyDeposit string
	DstTimelocks     string
}

// EscrowWithdrawal carries the secret revealed when an escrow is withdrawn.
type EscrowWithdrawal struct {
	Secret string
}

// OrderFilled is the word layout for both OrderFilled and (nominally)
// OrderCancelled on the Aggregation Router.
type OrderFilled struct {
	OrderHash string
	Remaining string
}

func words(data string) []string {
	data = strings.TrimPrefix(data, "0x")
	n := len(data) / wordHexLen
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = data[i*wordHexLen : (i+1)*wordHexLen]
	}
	return out
}

func toAddress(word string) string {
	if len(word) < 40 {
		return "0x" + strings.ToLower(word)
	}
	return "0x" + strings.ToLower(word[len(word)-40:])
}

func toBytes32(word string) string {
	return "0x" + strings.ToLower(word)
}

// SrcEscrowCreatedFields decodes a SrcEscrowCreated log's data payload. It
// needs 13 32-byte words and returns ok=false (never an error) for malformed
// input: a poller encountering a log it can't decode skips it rather than
// halting the chain.
func SrcEscrowCreatedFields(data string) (SrcEscrowCreated, bool) {
	w := words(data)
	if len(w) < 13 {
		return SrcEscrowCreated{}, false
	}
	dstChainID, err := strconv.ParseUint(w[12], 16, 32)
	if err != nil {
		return SrcEscrowCreated{}, false
	}
	return SrcEscrowCreated{
		OrderHash:        toBytes32(w[0]),
		Hashlock:         toBytes32(w[1]),
		SrcMaker:         toAddress(w[2]),
		SrcTaker:         toAddress(w[3]),
		SrcToken:         toAddress(w[4]),
		SrcAmount:        toBytes32(w[5]),
		SrcSafetyDeposit: toBytes32(w[6]),
		SrcTimelocks:     toBytes32(w[7]),
		DstMaker:         toAddress(w[8]),
		DstAmount:        toBytes32(w[9]),
		DstToken:         toAddress(w[10]),
		DstSafetyDeposit: toBytes32(w[11]),
		DstChainID:       uint32(dstChainID),
	}, true
}

// DstEscrowCreatedFields decodes a DstEscrowCreated log's data payload,
// needing 8 32-byte words.
func DstEscrowCreatedFields(data string) (DstEscrowCreated, bool) {
	w := words(data)
	if len(w) < 8 {
		return DstEscrowCreated{}, false
	}
	return DstEscrowCreated{
		OrderHash:        toBytes32(w[0]),
		Hashlock:         toBytes32(w[1]),
		DstMaker:         toAddress(w[2]),
		DstTaker:         toAddress(w[3]),
		DstToken:         toAddress(w[4]),
		DstAmount:        toBytes32(w[5]),
		DstSafetyDeposit: toBytes32(w[6]),
		DstTimelocks:     toBytes32(w[7]),
	}, true
}

// EscrowWithdrawalFields decodes the single-word secret payload of an
// EscrowWithdrawal log.
func EscrowWithdrawalFields(data string) (EscrowWithdrawal, bool) {
	w := words(data)
	if len(w) < 1 {
		return EscrowWithdrawal{}, false
	}
	return EscrowWithdrawal{Secret: toBytes32(w[0])}, true
}

// OrderFilledFields decodes the OrderFilled/OrderCancelled word layout:
// order hash followed by a remaining/filled amount.
func OrderFilledFields(data string) (OrderFilled, bool) {
	w := words(data)
	if len(w) < 2 {
		return OrderFilled{}, false
	}
	return OrderFilled{
		OrderHash: toBytes32(w[0]),
		Remaining: toBytes32(w[1]),
	}, true
}

// Hashlock computes keccak256(secret) the same way the escrow contracts do,
// so a revealed secret can be matched back to the hashlock recorded at
// SrcEscrowCreated time.
func Hashlock(secretHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(secretHex, "0x"))
	if err != nil {
		return "", err
	}
	sum := crypto.Keccak256(raw)
	return "0x" + hex.EncodeToString(sum), nil
}
