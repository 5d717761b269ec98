package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// SystemProgramId 系统转账程序地址
const SystemProgramId = "11111111111111111111111111111111"

// systemTransferInstruction 系统程序transfer指令编号
const systemTransferInstruction = 2

// confirmTimeout 交易确认等待上限
const confirmTimeout = 60 * time.Second

// TransferInstruction 一笔转账
type TransferInstruction struct {
	To       string
	Lamports int64
}

// Wallet 托管钱包。持有ed25519密钥，负责构造、签名并提交交易。
type Wallet struct {
	privateKey ed25519.PrivateKey
	address    string
	client     *Client
}

// NewWallet 从base58私钥创建钱包（64字节标准Solana格式）
func NewWallet(privateKeyBase58 string, client *Client) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)

	return &Wallet{
		privateKey: priv,
		address:    base58.Encode(pub),
		client:     client,
	}, nil
}

// Address 钱包地址（base58公钥）
func (w *Wallet) Address() string {
	return w.address
}

// ValidateAddress 校验地址是合法的ed25519曲线点
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid address encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid address length: %d", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return errors.New("address is not a valid curve point")
	}
	return nil
}

// Transfer 将多笔转账打包为一个原子交易，签名提交并等待确认。
// 所有转账要么全部上链，要么交易整体失败。
func (w *Wallet) Transfer(ctx context.Context, transfers []TransferInstruction) (string, error) {
	if len(transfers) == 0 {
		return "", errors.New("no transfers")
	}

	blockhash, err := w.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}

	message, err := w.buildTransferMessage(transfers, blockhash)
	if err != nil {
		return "", err
	}

	raw := w.signMessage(message)
	signature, err := w.client.SendTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := w.client.WaitForConfirmation(ctx, signature, confirmTimeout); err != nil {
		return "", err
	}
	return signature, nil
}

// SignAndSubmit 签名外部构造的交易（base64，费用支付方为本钱包）并提交确认
func (w *Wallet) SignAndSubmit(ctx context.Context, txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("invalid transaction encoding: %w", err)
	}

	// 跳过签名区定位message
	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("malformed transaction: %w", err)
	}
	sigEnd := offset + numSigs*ed25519.SignatureSize
	if sigEnd > len(raw) {
		return "", errors.New("malformed transaction: truncated signatures")
	}
	message := raw[sigEnd:]

	// 费用支付方签名固定在第一个槽位
	sig := ed25519.Sign(w.privateKey, message)
	copy(raw[offset:], sig)

	signature, err := w.client.SendTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := w.client.WaitForConfirmation(ctx, signature, confirmTimeout); err != nil {
		return "", err
	}
	return signature, nil
}

// buildTransferMessage 构造legacy交易message
func (w *Wallet) buildTransferMessage(transfers []TransferInstruction, blockhash string) ([]byte, error) {
	// 账户表：付款方、各收款方（去重）、系统程序
	accounts := []string{w.address}
	index := map[string]int{w.address: 0}
	for _, t := range transfers {
		if t.Lamports <= 0 {
			return nil, fmt.Errorf("invalid transfer amount: %d", t.Lamports)
		}
		if _, ok := index[t.To]; !ok {
			index[t.To] = len(accounts)
			accounts = append(accounts, t.To)
		}
	}
	programIndex := len(accounts)
	accounts = append(accounts, SystemProgramId)

	var msg []byte
	// header: 1个签名账户，0个只读签名账户，1个只读非签名账户（系统程序）
	msg = append(msg, 1, 0, 1)

	msg = appendCompactU16(msg, len(accounts))
	for _, account := range accounts {
		raw, err := base58.Decode(account)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid account address: %s", account)
		}
		msg = append(msg, raw...)
	}

	rawHash, err := base58.Decode(blockhash)
	if err != nil || len(rawHash) != 32 {
		return nil, fmt.Errorf("invalid blockhash: %s", blockhash)
	}
	msg = append(msg, rawHash...)

	msg = appendCompactU16(msg, len(transfers))
	for _, t := range transfers {
		msg = append(msg, byte(programIndex))
		msg = appendCompactU16(msg, 2)
		msg = append(msg, 0, byte(index[t.To]))

		data := make([]byte, 12)
		binary.LittleEndian.PutUint32(data[0:4], systemTransferInstruction)
		binary.LittleEndian.PutUint64(data[4:12], uint64(t.Lamports))
		msg = appendCompactU16(msg, len(data))
		msg = append(msg, data...)
	}

	return msg, nil
}

// signMessage 签名并拼装完整交易
func (w *Wallet) signMessage(message []byte) []byte {
	sig := ed25519.Sign(w.privateKey, message)

	var raw []byte
	raw = appendCompactU16(raw, 1)
	raw = append(raw, sig...)
	raw = append(raw, message...)
	return raw
}

// appendCompactU16 追加compact-u16编码的长度
func appendCompactU16(buf []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(buf, byte(v))
		}
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
}

// decodeCompactU16 解码compact-u16，返回值与消耗的字节数
func decodeCompactU16(buf []byte) (int, int, error) {
	value := 0
	shift := 0
	for i := 0; i < len(buf) && i < 3; i++ {
		b := buf[i]
		value |= int(b&0x7f) << shift
		if b < 0x80 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("invalid compact-u16")
}
