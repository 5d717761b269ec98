package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/logger"
)

// VerificationError 链上校验失败。资金可能已实际转移，需记录日志供人工核查。
type VerificationError struct {
	Signature string
	Reason    string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %s: %s", e.Signature, e.Reason)
}

// Verifier 存款/付费交易校验器。按签名拉取交易，对比目标地址的余额变动
// 与声称金额是否在容差范围内。容差与重试参数来自配置而非硬编码。
type Verifier struct {
	client    *Client
	tolerance int64
	retries   int
	retryWait time.Duration
}

// NewVerifier 创建校验器
func NewVerifier(client *Client, toleranceLamports int64, retries int, retryWait time.Duration) *Verifier {
	return &Verifier{
		client:    client,
		tolerance: toleranceLamports,
		retries:   retries,
		retryWait: retryWait,
	}
}

// VerifyTransfer 校验签名对应的交易向recipient转入了expected lamports（容差内）。
// 交易暂未可见时等待后有限重试，链上延迟不应立即判失败。
func (v *Verifier) VerifyTransfer(ctx context.Context, signature, recipient string, expected int64) error {
	tx, err := v.fetchWithRetry(ctx, signature)
	if err != nil {
		return err
	}

	if !tx.Succeeded() {
		return &VerificationError{Signature: signature, Reason: fmt.Sprintf("transaction failed on chain: %v", tx.Err)}
	}

	delta, ok := tx.BalanceDelta(recipient)
	if !ok {
		return &VerificationError{Signature: signature, Reason: fmt.Sprintf("recipient %s not in transaction", recipient)}
	}

	diff := delta - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > v.tolerance {
		logger.Warn("Deposit amount mismatch for tx %s: claimed %d, observed delta %d (tolerance %d)",
			signature, expected, delta, v.tolerance)
		return &VerificationError{
			Signature: signature,
			Reason:    fmt.Sprintf("amount mismatch: claimed %d, observed %d", expected, delta),
		}
	}

	return nil
}

// Balance 获取地址链上余额
func (v *Verifier) Balance(ctx context.Context, address string) (int64, error) {
	return v.client.GetBalance(ctx, address)
}

// fetchWithRetry 拉取交易，未找到时等待重试
func (v *Verifier) fetchWithRetry(ctx context.Context, signature string) (*Transaction, error) {
	for attempt := 0; ; attempt++ {
		tx, err := v.client.GetTransaction(ctx, signature)
		if err != nil {
			return nil, fmt.Errorf("fetch transaction %s: %w", signature, err)
		}
		if tx != nil {
			return tx, nil
		}

		if attempt >= v.retries {
			return nil, &VerificationError{Signature: signature, Reason: "transaction not found"}
		}

		logger.Debug("Transaction %s not found yet, retrying in %s", signature, v.retryWait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(v.retryWait):
		}
	}
}
