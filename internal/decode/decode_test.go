package decode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"evmindexer/internal/decode"
)

// word left-pads a short hex literal to a full 32-byte word, the same shape
// abi.encode produces for addresses, uints, and bytes32 alike.
func word(hexDigits string) string {
	return strings.Repeat("0", 64-len(hexDigits)) + hexDigits
}

func TestSrcEscrowCreatedFieldsHappyPath(t *testing.T) {
	data := "0x" +
		word("aa") + // order hash
		word("bb") + // hashlock
		word("1111111111111111111111111111111111111111") + // src maker
		word("2222222222222222222222222222222222222222") + // src taker
		word("3333333333333333333333333333333333333333") + // src token
		word("64") + // src amount = 100
		word("1") + // src safety deposit
		word("0") + // src timelocks
		word("4444444444444444444444444444444444444444") + // dst maker
		word("63") + // dst amount = 99
		word("5555555555555555555555555555555555555555") + // dst token
		word("1") + // dst safety deposit
		word("a") // dst chain id = 10

	fields, ok := decode.SrcEscrowCreatedFields(data)
	require.True(t, ok)
	require.Equal(t, "0x"+word("aa"), fields.OrderHash)
	require.Equal(t, "0x"+word("bb"), fields.Hashlock)
	require.Equal(t, "0x1111111111111111111111111111111111111111", fields.SrcMaker)
	require.Equal(t, "0x2222222222222222222222222222222222222222", fields.SrcTaker)
	require.Equal(t, "0x3333333333333333333333333333333333333333", fields.SrcToken)
	require.Equal(t, uint32(10), fields.DstChainID)
}

func TestSrcEscrowCreatedFieldsTooShort(t *testing.T) {
	_, ok := decode.SrcEscrowCreatedFields("0x" + word("aa"))
	require.False(t, ok)
}

func TestDstEscrowCreatedFields(t *testing.T) {
	data := "0x" +
		word("aa") + // order hash
		word("bb") + // hashlock
		word("1111111111111111111111111111111111111111") + // dst maker
		word("2222222222222222222222222222222222222222") + // dst taker
		word("3333333333333333333333333333333333333333") + // dst token
		word("63") + // dst amount
		word("1") + // dst safety deposit
		word("0") // dst timelocks

	fields, ok := decode.DstEscrowCreatedFields(data)
	require.True(t, ok)
	require.Equal(t, "0x1111111111111111111111111111111111111111", fields.DstMaker)
	require.Equal(t, "0x2222222222222222222222222222222222222222", fields.DstTaker)
}

func TestEscrowWithdrawalFields(t *testing.T) {
	data := "0x" + word("deadbeef")
	fields, ok := decode.EscrowWithdrawalFields(data)
	require.True(t, ok)
	require.Equal(t, "0x"+word("deadbeef"), fields.Secret)
}

func TestOrderFilledFields(t *testing.T) {
	data := "0x" + word("aa") + word("64")
	fields, ok := decode.OrderFilledFields(data)
	require.True(t, ok)
	require.Equal(t, "0x"+word("aa"), fields.OrderHash)
	require.Equal(t, "0x"+word("64"), fields.Remaining)
}

func TestHashlockMatchesKeccak256OfSecret(t *testing.T) {
	// keccak256("") is a well-known constant, useful as a zero-setup fixture.
	got, err := decode.Hashlock("0x")
	require.NoError(t, err)
	require.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", got)
}

func TestHashlockInvalidHex(t *testing.T) {
	_, err := decode.Hashlock("0xzz")
	require.Error(t, err)
}
