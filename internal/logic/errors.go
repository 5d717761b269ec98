package logic

import (
	"context"

	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/solana"
)

// ValidationError 入参非法，未产生任何状态变更
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PreconditionError 当前状态不允许该操作，未产生任何状态变更
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return e.Msg
}

// ExternalError 外部服务调用失败，预售停留在最后已知的安全状态
type ExternalError struct {
	Msg string
	Err error
}

func (e *ExternalError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// ChainVerifier 链上交易校验（§链读取方）
type ChainVerifier interface {
	VerifyTransfer(ctx context.Context, signature, recipient string, expected int64) error
	Balance(ctx context.Context, address string) (int64, error)
}

// EscrowWallet 托管钱包（§链写入方）
type EscrowWallet interface {
	Address() string
	Transfer(ctx context.Context, transfers []solana.TransferInstruction) (string, error)
	SignAndSubmit(ctx context.Context, txBase64 string) (string, error)
}

// LaunchpadAPI 发射平台接口
type LaunchpadAPI interface {
	CreateTokenMetadata(ctx context.Context, req *launchpad.TokenMetadataRequest) (*launchpad.TokenMetadataResult, error)
	CreateFeeShareConfig(ctx context.Context, req *launchpad.FeeShareConfigRequest) (*launchpad.FeeShareConfigResult, error)
	CreateLaunchTransaction(ctx context.Context, req *launchpad.LaunchTransactionRequest) (string, error)
}

// MarketDataAPI 行情查询接口，仅展示用
type MarketDataAPI interface {
	GetMarketData(ctx context.Context, tokenMint string) (*launchpad.MarketData, error)
}
