package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	wallet, err := NewWallet(base58.Encode(priv), nil)
	require.NoError(t, err)
	return wallet
}

func testPubkey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func TestNewWalletDerivesAddress(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	wallet, err := NewWallet(base58.Encode(priv), nil)
	require.NoError(t, err)

	pub := priv.Public().(ed25519.PublicKey)
	assert.Equal(t, base58.Encode(pub), wallet.Address())
	assert.NoError(t, ValidateAddress(wallet.Address()))
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	_, err := NewWallet("not-base58-!!", nil)
	assert.Error(t, err)

	// 32字节种子不是标准的64字节格式
	seed := make([]byte, 32)
	_, err = NewWallet(base58.Encode(seed), nil)
	assert.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(testPubkey(t)))
	assert.NoError(t, ValidateAddress(SystemProgramId))

	assert.Error(t, ValidateAddress("not-base58-!!"))
	assert.Error(t, ValidateAddress(base58.Encode([]byte{1, 2, 3})))
}

func TestCompactU16Roundtrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 255, 16383, 16384, 65535} {
		encoded := appendCompactU16(nil, v)
		decoded, consumed, err := decodeCompactU16(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(encoded), consumed)
	}
}

func TestBuildTransferMessage(t *testing.T) {
	wallet := newTestWallet(t)
	dest1 := testPubkey(t)
	dest2 := testPubkey(t)
	blockhash := testPubkey(t)

	msg, err := wallet.buildTransferMessage([]TransferInstruction{
		{To: dest1, Lamports: 1_000_000},
		{To: dest2, Lamports: 2_000_000},
	}, blockhash)
	require.NoError(t, err)

	// header: 1个签名账户，0个只读签名账户，1个只读非签名账户
	assert.Equal(t, byte(1), msg[0])
	assert.Equal(t, byte(0), msg[1])
	assert.Equal(t, byte(1), msg[2])

	// 账户表：付款方、两个收款方、系统程序
	numAccounts, offset, err := decodeCompactU16(msg[3:])
	require.NoError(t, err)
	assert.Equal(t, 4, numAccounts)

	accountsStart := 3 + offset
	payer := msg[accountsStart : accountsStart+32]
	assert.Equal(t, wallet.Address(), base58.Encode(payer))
	program := msg[accountsStart+3*32 : accountsStart+4*32]
	assert.Equal(t, SystemProgramId, base58.Encode(program))

	// blockhash紧随账户表
	hashStart := accountsStart + 4*32
	assert.Equal(t, blockhash, base58.Encode(msg[hashStart:hashStart+32]))

	// 两条指令
	numInstructions, _, err := decodeCompactU16(msg[hashStart+32:])
	require.NoError(t, err)
	assert.Equal(t, 2, numInstructions)
}

func TestBuildTransferMessageDeduplicatesAccounts(t *testing.T) {
	wallet := newTestWallet(t)
	dest := testPubkey(t)
	blockhash := testPubkey(t)

	msg, err := wallet.buildTransferMessage([]TransferInstruction{
		{To: dest, Lamports: 1_000_000},
		{To: dest, Lamports: 2_000_000},
	}, blockhash)
	require.NoError(t, err)

	numAccounts, _, err := decodeCompactU16(msg[3:])
	require.NoError(t, err)
	// 付款方、收款方（去重）、系统程序
	assert.Equal(t, 3, numAccounts)
}

func TestBuildTransferMessageRejectsInvalidAmounts(t *testing.T) {
	wallet := newTestWallet(t)

	_, err := wallet.buildTransferMessage([]TransferInstruction{
		{To: testPubkey(t), Lamports: 0},
	}, testPubkey(t))
	assert.Error(t, err)

	_, err = wallet.buildTransferMessage([]TransferInstruction{
		{To: testPubkey(t), Lamports: -5},
	}, testPubkey(t))
	assert.Error(t, err)
}

func TestTransferInstructionEncoding(t *testing.T) {
	wallet := newTestWallet(t)
	dest := testPubkey(t)
	blockhash := testPubkey(t)

	msg, err := wallet.buildTransferMessage([]TransferInstruction{
		{To: dest, Lamports: 123_456_789},
	}, blockhash)
	require.NoError(t, err)

	// 指令数据在message末尾：u32指令编号 + u64金额，小端
	data := msg[len(msg)-12:]
	assert.Equal(t, uint32(systemTransferInstruction), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(123_456_789), binary.LittleEndian.Uint64(data[4:12]))
}

func TestSignedMessageVerifies(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := NewWallet(base58.Encode(priv), nil)
	require.NoError(t, err)

	msg, err := wallet.buildTransferMessage([]TransferInstruction{
		{To: testPubkey(t), Lamports: 1_000_000},
	}, testPubkey(t))
	require.NoError(t, err)

	raw := wallet.signMessage(msg)

	numSigs, offset, err := decodeCompactU16(raw)
	require.NoError(t, err)
	require.Equal(t, 1, numSigs)

	sig := raw[offset : offset+ed25519.SignatureSize]
	message := raw[offset+ed25519.SignatureSize:]
	pub := priv.Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, message, sig))
}
