package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/fees"
	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
	"github.com/BAGS69FUN/BAGS69/internal/store"
)

// LaunchStep 发射流程步骤
type LaunchStep string

const (
	StepFeeShares LaunchStep = "fee_shares"      // 计算分润
	StepMetadata  LaunchStep = "token_metadata"  // 注册代币元数据
	StepConfig    LaunchStep = "fee_share_config" // 注册分润配置
	StepLaunchTx  LaunchStep = "launch_transaction" // 发射交易
	StepFinalize  LaunchStep = "finalize"        // 落库定稿
)

// LaunchResult 发射结果。失败时FailedStep标明失败环节，
// 已取得的部分标识（mint、配置key）随预售持久化，重试不会重做已完成步骤。
type LaunchResult struct {
	PresaleId          string     `json:"presale_id"`
	Launched           bool       `json:"launched"`
	FailedStep         LaunchStep `json:"failed_step,omitempty"`
	TokenMint          string     `json:"token_mint,omitempty"`
	ConfigKey          string     `json:"config_key,omitempty"`
	Signature          string     `json:"signature,omitempty"`
	ConfigTxsSubmitted int        `json:"config_txs_submitted"`
	ConfigTxsTotal     int        `json:"config_txs_total"`
	Error              string     `json:"error,omitempty"`
}

// LaunchLogic 发射编排。满员预售经 分润→元数据→分润配置→发射交易→定稿
// 五步走向launched；任一外部步骤失败时预售保持active并保留已取得的标识。
// 编排器自身不重试，重试由下一次满员join或人工触发。
type LaunchLogic struct {
	store  *store.Store
	engine *fees.Engine
	api    LaunchpadAPI
	wallet EscrowWallet
	chain  ChainVerifier
	cfg    *config.Config
}

// NewLaunchLogic 创建发射编排
func NewLaunchLogic(s *store.Store, engine *fees.Engine, api LaunchpadAPI, wallet EscrowWallet, chain ChainVerifier, cfg *config.Config) *LaunchLogic {
	return &LaunchLogic{
		store:  s,
		engine: engine,
		api:    api,
		wallet: wallet,
		chain:  chain,
		cfg:    cfg,
	}
}

// Execute 执行发射流程。调用方必须持有该预售的锁。
// 内部错误（计算、落库）同样返回标明失败环节的结果，error非nil。
func (l *LaunchLogic) Execute(ctx context.Context, presale *model.PresaleModel) (*LaunchResult, error) {
	result := &LaunchResult{PresaleId: presale.Id}

	// 步骤1：计算分润。总额校验失败是致命错误，任何外部调用之前就中止。
	allocations, err := l.engine.Compute(presale.Id)
	if err != nil {
		result.FailedStep = StepFeeShares
		result.Error = err.Error()
		var sumErr *fees.SumInvariantError
		if errors.As(err, &sumErr) {
			logger.Error("FATAL: fee share invariant violated for presale %s: %v", presale.Id, err)
			return result, err
		}
		return result, fmt.Errorf("fee share computation failed: %w", err)
	}
	logger.Info("Computed %d fee share allocations for presale %s", len(allocations), presale.Id)

	// 步骤2：注册代币元数据。已有mint时跳过（上次失败的重试）。
	if presale.TokenMint == "" {
		meta, err := l.api.CreateTokenMetadata(ctx, &launchpad.TokenMetadataRequest{
			Name:        presale.TokenName,
			Symbol:      presale.TokenSymbol,
			Description: presale.TokenDescription,
			ImageUrl:    presale.ImageURL,
			Twitter:     presale.Twitter,
			Telegram:    presale.Telegram,
			Website:     presale.Website,
		})
		if err != nil {
			logger.Error("Token metadata registration failed for presale %s: %v", presale.Id, err)
			result.FailedStep = StepMetadata
			result.Error = err.Error()
			return result, nil
		}

		// 立即持久化，重试时直接复用
		if err := l.store.UpdateStatus(presale.Id, model.PresaleStatusActive, map[string]interface{}{
			"token_mint":         meta.TokenMint,
			"token_metadata_uri": meta.MetadataUri,
		}); err != nil {
			result.FailedStep = StepMetadata
			result.Error = err.Error()
			return result, fmt.Errorf("failed to persist token mint: %w", err)
		}
		presale.TokenMint = meta.TokenMint
		presale.TokenMetadataUri = meta.MetadataUri
		logger.Info("Registered token metadata for presale %s: mint=%s", presale.Id, meta.TokenMint)
	} else {
		logger.Info("Presale %s already has token mint %s, skipping metadata step", presale.Id, presale.TokenMint)
	}
	result.TokenMint = presale.TokenMint

	// 步骤3：注册分润配置。已有配置key时跳过。
	if presale.FeeShareConfigKey == "" {
		if err := l.registerFeeShareConfig(ctx, presale, allocations, result); err != nil {
			result.FailedStep = StepConfig
			result.Error = err.Error()
			return result, nil
		}
	} else {
		logger.Info("Presale %s already has fee share config %s, skipping config step",
			presale.Id, presale.FeeShareConfigKey)
	}
	result.ConfigKey = presale.FeeShareConfigKey

	// 步骤4：构造并提交发射交易（含初始买入）
	initialBuy := presale.TotalLamports * int64(l.cfg.Launch.InitialBuyBps) / policy.TotalBps
	balance, err := l.chain.Balance(ctx, l.wallet.Address())
	if err != nil {
		result.FailedStep = StepLaunchTx
		result.Error = fmt.Sprintf("escrow balance check failed: %v", err)
		return result, nil
	}
	if balance < initialBuy+l.cfg.Chain.NetworkFeeLamports {
		logger.Error("Escrow balance %d cannot cover initial buy %d for presale %s",
			balance, initialBuy, presale.Id)
		result.FailedStep = StepLaunchTx
		result.Error = fmt.Sprintf("insufficient escrow balance: have %d, need %d",
			balance, initialBuy+l.cfg.Chain.NetworkFeeLamports)
		return result, nil
	}

	txBase64, err := l.api.CreateLaunchTransaction(ctx, &launchpad.LaunchTransactionRequest{
		TokenMint:          presale.TokenMint,
		MetadataUri:        presale.TokenMetadataUri,
		ConfigKey:          presale.FeeShareConfigKey,
		Wallet:             l.wallet.Address(),
		InitialBuyLamports: initialBuy,
	})
	if err != nil {
		logger.Error("Launch transaction build failed for presale %s: %v", presale.Id, err)
		result.FailedStep = StepLaunchTx
		result.Error = err.Error()
		return result, nil
	}

	signature, err := l.wallet.SignAndSubmit(ctx, txBase64)
	if err != nil {
		logger.Error("Launch transaction submit failed for presale %s: %v", presale.Id, err)
		result.FailedStep = StepLaunchTx
		result.Error = err.Error()
		return result, nil
	}

	// 步骤5：定稿。同步落库，此后任何读取都只能看到launched。
	now := time.Now()
	if err := l.store.UpdateStatus(presale.Id, model.PresaleStatusLaunched, map[string]interface{}{
		"launch_tx_signature": signature,
		"launched_at":         &now,
	}); err != nil {
		result.FailedStep = StepFinalize
		result.Error = err.Error()
		return result, fmt.Errorf("failed to finalize launch: %w", err)
	}

	result.Launched = true
	result.Signature = signature
	logger.Info("Presale %s launched: mint=%s tx=%s", presale.Id, presale.TokenMint, signature)
	return result, nil
}

// registerFeeShareConfig 注册分润配置并提交平台返回的待签名交易。
// 完整请求被拒时降级为不带合作方归因重试一次。
func (l *LaunchLogic) registerFeeShareConfig(ctx context.Context, presale *model.PresaleModel, allocations []fees.Allocation, result *LaunchResult) error {
	wallets := make([]string, len(allocations))
	bps := make([]int, len(allocations))
	for i, a := range allocations {
		wallets[i] = a.Address
		bps[i] = a.Bps
	}

	req := &launchpad.FeeShareConfigRequest{
		TokenMint:     presale.TokenMint,
		Wallets:       wallets,
		Bps:           bps,
		PartnerWallet: l.cfg.Launchpad.PartnerWallet,
	}

	cfgResult, err := l.api.CreateFeeShareConfig(ctx, req)
	if err != nil && req.PartnerWallet != "" {
		logger.Warn("Fee share config with partner attribution rejected for presale %s, retrying without: %v",
			presale.Id, err)
		cfgResult, err = l.api.CreateFeeShareConfig(ctx, req.WithoutPartner())
	}
	if err != nil {
		logger.Error("Fee share config registration failed for presale %s: %v", presale.Id, err)
		return err
	}

	if err := l.store.UpdateStatus(presale.Id, model.PresaleStatusActive, map[string]interface{}{
		"fee_share_config_key": cfgResult.ConfigKey,
	}); err != nil {
		return fmt.Errorf("failed to persist config key: %w", err)
	}
	presale.FeeShareConfigKey = cfgResult.ConfigKey
	logger.Info("Registered fee share config for presale %s: key=%s, %d pending transactions",
		presale.Id, cfgResult.ConfigKey, len(cfgResult.PendingTransactions))

	// 提交平台要求的结算交易
	submitted := 0
	for i, tx := range cfgResult.PendingTransactions {
		sig, err := l.wallet.SignAndSubmit(ctx, tx)
		if err != nil {
			logger.Error("Fee share config transaction %d/%d failed for presale %s: %v",
				i+1, len(cfgResult.PendingTransactions), presale.Id, err)
			continue
		}
		logger.Info("Fee share config transaction %d/%d confirmed: %s",
			i+1, len(cfgResult.PendingTransactions), sig)
		submitted++
	}
	result.ConfigTxsSubmitted = submitted
	result.ConfigTxsTotal = len(cfgResult.PendingTransactions)

	// 全部失败时按配置决定中止还是降级继续
	if len(cfgResult.PendingTransactions) > 0 && submitted == 0 {
		if l.cfg.Launch.RequireConfigTxs {
			return fmt.Errorf("all %d fee share config transactions failed", len(cfgResult.PendingTransactions))
		}
		logger.Warn("Presale %s proceeding with 0/%d fee share config transactions confirmed",
			presale.Id, len(cfgResult.PendingTransactions))
	}
	return nil
}
