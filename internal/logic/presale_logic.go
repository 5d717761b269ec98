package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
	"github.com/BAGS69FUN/BAGS69/internal/solana"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"gorm.io/gorm"
)

// PresaleLogic 预售生命周期管理。所有变更操作的唯一入口，
// 每个入口先经过reconcile做惰性过期判定。
type PresaleLogic struct {
	store    *store.Store
	verifier ChainVerifier
	wallet   EscrowWallet
	launch   *LaunchLogic
	market   MarketDataAPI
	cfg      *config.Config
}

// NewPresaleLogic 创建预售生命周期管理
func NewPresaleLogic(s *store.Store, verifier ChainVerifier, wallet EscrowWallet, launch *LaunchLogic, market MarketDataAPI, cfg *config.Config) *PresaleLogic {
	return &PresaleLogic{
		store:    s,
		verifier: verifier,
		wallet:   wallet,
		launch:   launch,
		market:   market,
		cfg:      cfg,
	}
}

// CreatePresaleRequest 创建预售请求
type CreatePresaleRequest struct {
	CreatorAddress     string
	LaunchFeeTxHash    string
	TokenName          string
	TokenSymbol        string
	TokenDescription   string
	ImageURL           string
	Twitter            string
	Telegram           string
	Website            string
	MinAmount          int64 // lamports，0取默认值
	MaxAmount          int64 // lamports，0取默认值
	TargetParticipants int
	DurationMinutes    int
}

// Create 创建预售。要求已验证的不可退还创建费支付。
func (l *PresaleLogic) Create(ctx context.Context, req *CreatePresaleRequest) (*model.PresaleModel, error) {
	if req.TokenName == "" {
		return nil, &ValidationError{Msg: "代币名称不能为空"}
	}
	if req.TokenSymbol == "" || len(req.TokenSymbol) > policy.MaxSymbolLength {
		return nil, &ValidationError{Msg: fmt.Sprintf("代币符号长度必须在1-%d之间", policy.MaxSymbolLength)}
	}
	if !policy.IsValidDuration(req.DurationMinutes) {
		return nil, &ValidationError{Msg: fmt.Sprintf("预售时长必须是%v分钟之一", policy.AllowedDurations)}
	}
	if !policy.IsValidTargetParticipants(req.TargetParticipants) {
		return nil, &ValidationError{Msg: fmt.Sprintf("目标参与人数必须在%d-%d之间", policy.MinParticipants, policy.MaxParticipants)}
	}
	if err := solana.ValidateAddress(req.CreatorAddress); err != nil {
		return nil, &ValidationError{Msg: "创建者地址无效"}
	}
	if req.LaunchFeeTxHash == "" {
		return nil, &ValidationError{Msg: "缺少创建费支付交易"}
	}

	minAmount := req.MinAmount
	if minAmount == 0 {
		minAmount = policy.DefaultMinAmountLamports
	}
	maxAmount := req.MaxAmount
	if maxAmount == 0 {
		maxAmount = policy.DefaultMaxAmountLamports
	}
	if minAmount <= 0 || minAmount > maxAmount {
		return nil, &ValidationError{Msg: "存款上下限无效"}
	}

	// 创建费交易不可复用
	used, err := l.store.LaunchFeeTxUsed(req.LaunchFeeTxHash)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, &PreconditionError{Msg: "该创建费交易已被使用"}
	}

	// 链上校验创建费支付
	if err := l.verifier.VerifyTransfer(ctx, req.LaunchFeeTxHash, l.cfg.Chain.FeeWallet, policy.LaunchFeeLamports); err != nil {
		var verr *solana.VerificationError
		if errors.As(err, &verr) {
			logger.Warn("Launch fee verification failed for creator %s: %v", req.CreatorAddress, err)
			return nil, &PreconditionError{Msg: "创建费支付校验失败: " + verr.Reason}
		}
		return nil, &ExternalError{Msg: "创建费校验请求失败", Err: err}
	}

	now := time.Now()
	presale := &model.PresaleModel{
		CreatorAddress:     req.CreatorAddress,
		LaunchFeeTxHash:    req.LaunchFeeTxHash,
		TokenName:          req.TokenName,
		TokenSymbol:        req.TokenSymbol,
		TokenDescription:   req.TokenDescription,
		ImageURL:           req.ImageURL,
		Twitter:            req.Twitter,
		Telegram:           req.Telegram,
		Website:            req.Website,
		MinAmount:          minAmount,
		MaxAmount:          maxAmount,
		TargetParticipants: req.TargetParticipants,
		DurationMinutes:    req.DurationMinutes,
		ExpiresAt:          now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		Status:             model.PresaleStatusActive,
	}

	if err := l.store.Create(presale); err != nil {
		return nil, err
	}

	logger.Info("Created presale %s by %s: target=%d duration=%dm",
		presale.Id, presale.CreatorAddress, presale.TargetParticipants, presale.DurationMinutes)
	return presale, nil
}

// PresaleView 预售详情视图
type PresaleView struct {
	Presale      *model.PresaleModel      `json:"presale"`
	Participants []model.ParticipantModel `json:"participants"`
	Market       *launchpad.MarketData    `json:"market,omitempty"`
}

// Get 获取预售详情（含参与记录，已发射的附带尽力而为的行情）
func (l *PresaleLogic) Get(ctx context.Context, id string) (*PresaleView, error) {
	presale, err := l.store.GetById(id)
	if err != nil {
		return nil, err
	}
	presale, err = l.reconcile(presale)
	if err != nil {
		return nil, err
	}

	participants, err := l.store.GetParticipants(id)
	if err != nil {
		return nil, err
	}

	view := &PresaleView{Presale: presale, Participants: participants}

	// 行情失败只记日志，不影响详情返回
	if presale.Status == model.PresaleStatusLaunched && presale.TokenMint != "" && l.market != nil {
		market, err := l.market.GetMarketData(ctx, presale.TokenMint)
		if err != nil {
			logger.Debug("Market data unavailable for %s: %v", presale.TokenMint, err)
		} else {
			view.Market = market
		}
	}

	return view, nil
}

// List 分页获取预售列表
func (l *PresaleLogic) List(limit, offset int) ([]model.PresaleModel, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	presales, total, err := l.store.ListAll(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range presales {
		reconciled, err := l.reconcile(&presales[i])
		if err != nil {
			return nil, 0, err
		}
		presales[i] = *reconciled
	}
	return presales, total, nil
}

// ListActive 获取进行中的预售
func (l *PresaleLogic) ListActive() ([]model.PresaleModel, error) {
	return l.store.ListActive(time.Now())
}

// JoinResult 加入结果。该笔加入触发发射时附带发射结果，
// 发射失败不回滚加入本身。
type JoinResult struct {
	Presale     *model.PresaleModel     `json:"presale"`
	Participant *model.ParticipantModel `json:"participant"`
	Launch      *LaunchResult           `json:"launch,omitempty"`
}

// Join 加入预售。校验存款交易后确认记录并累加统计；
// 本次确认使预售满员时，同一调用内同步驱动发射。
func (l *PresaleLogic) Join(ctx context.Context, presaleId, wallet string, amountLamports int64, depositTxHash string) (*JoinResult, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, &ValidationError{Msg: "钱包地址无效"}
	}
	if depositTxHash == "" {
		return nil, &ValidationError{Msg: "缺少存款交易签名"}
	}

	unlock := l.store.LockPresale(presaleId)
	defer unlock()

	presale, err := l.store.GetById(presaleId)
	if err != nil {
		return nil, err
	}
	presale, err = l.reconcile(presale)
	if err != nil {
		return nil, err
	}

	if presale.Status != model.PresaleStatusActive {
		return nil, &PreconditionError{Msg: "预售已结束，无法加入"}
	}
	if presale.IsFull() {
		return nil, &PreconditionError{Msg: "预售已满员"}
	}
	if wallet == presale.CreatorAddress {
		return nil, &PreconditionError{Msg: "创建者不能参与自己的预售"}
	}
	if amountLamports < presale.MinAmount {
		return nil, &ValidationError{Msg: "存款金额低于最小限制"}
	}
	if amountLamports > presale.MaxAmount {
		return nil, &ValidationError{Msg: "存款金额超过最大限制"}
	}

	existing, err := l.store.GetUnresolved(presaleId, wallet)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &PreconditionError{Msg: "该钱包已存在未结算的参与记录"}
	}

	// 链上校验存款到账
	if err := l.verifier.VerifyTransfer(ctx, depositTxHash, l.wallet.Address(), amountLamports); err != nil {
		var verr *solana.VerificationError
		if errors.As(err, &verr) {
			logger.Warn("Deposit verification failed for %s in presale %s: %v", wallet, presaleId, err)
			return nil, &PreconditionError{Msg: "存款交易校验失败: " + verr.Reason}
		}
		return nil, &ExternalError{Msg: "存款校验请求失败", Err: err}
	}

	participant, err := l.store.AddParticipant(&model.ParticipantModel{
		PresaleId:      presaleId,
		Address:        wallet,
		AmountLamports: amountLamports,
		DepositTxHash:  depositTxHash,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &PreconditionError{Msg: "该存款交易已被使用"}
		}
		return nil, err
	}
	if participant == nil {
		return nil, &PreconditionError{Msg: "该钱包已存在未结算的参与记录"}
	}

	updated, err := l.store.ConfirmParticipant(presaleId, wallet)
	if err != nil {
		// 存款已验证入账但确认失败，记录停留在未确认态，可随时走退款原路退回
		if errors.Is(err, store.ErrPresaleFull) {
			logger.Warn("Deposit from %s lost the final slot of presale %s, refundable", wallet, presaleId)
			return nil, &PreconditionError{Msg: "预售已满员，存款可申请退款"}
		}
		return nil, err
	}

	logger.Info("Wallet %s joined presale %s with %d lamports (%d/%d)",
		wallet, presaleId, amountLamports, updated.ParticipantCount, updated.TargetParticipants)

	result := &JoinResult{Presale: updated, Participant: participant}

	// 本次加入填满预售：同一请求内驱动发射并上报结果，加入本身已成立
	if updated.IsFull() {
		logger.Info("Presale %s is full, triggering launch", presaleId)
		launchResult, err := l.launch.Execute(ctx, updated)
		if err != nil {
			logger.Error("Launch aborted for presale %s: %v", presaleId, err)
		}
		result.Launch = launchResult

		if refreshed, err := l.store.GetById(presaleId); err == nil {
			result.Presale = refreshed
		}
	}

	return result, nil
}

// SettlementReceipt 结算回执
type SettlementReceipt struct {
	PresaleId      string `json:"presale_id"`
	Wallet         string `json:"wallet"`
	Signature      string `json:"signature"`
	AmountLamports int64  `json:"amount_lamports"`
	TaxLamports    int64  `json:"tax_lamports"`
	PaidLamports   int64  `json:"paid_lamports"`
}

// Withdraw 主动退出进行中的预售，征收退出税。
// 税款与退款打包在同一笔原子交易内，不存在只转一半还上报成功的状态。
func (l *PresaleLogic) Withdraw(ctx context.Context, presaleId, wallet string) (*SettlementReceipt, error) {
	unlock := l.store.LockPresale(presaleId)
	defer unlock()

	presale, err := l.store.GetById(presaleId)
	if err != nil {
		return nil, err
	}
	presale, err = l.reconcile(presale)
	if err != nil {
		return nil, err
	}

	if presale.Status != model.PresaleStatusActive {
		return nil, &PreconditionError{Msg: "预售已结束，请走退款流程"}
	}

	participant, err := l.resolveSettleTarget(presaleId, wallet)
	if err != nil {
		return nil, err
	}

	tax, returned := policy.WithdrawalTax(participant.AmountLamports)

	if err := l.ensureEscrowBalance(ctx, participant.AmountLamports); err != nil {
		return nil, err
	}

	transfers := make([]solana.TransferInstruction, 0, 2)
	if tax > 0 {
		transfers = append(transfers, solana.TransferInstruction{To: l.cfg.Chain.TaxWallet, Lamports: tax})
	}
	transfers = append(transfers, solana.TransferInstruction{To: wallet, Lamports: returned})

	signature, err := l.wallet.Transfer(ctx, transfers)
	if err != nil {
		logger.Error("Withdrawal transfer failed for %s in presale %s: %v", wallet, presaleId, err)
		return nil, &ExternalError{Msg: "退出打款失败", Err: err}
	}

	if err := l.store.MarkWithdrawn(presaleId, wallet, signature, tax); err != nil {
		return nil, err
	}

	logger.Info("Wallet %s withdrew from presale %s: returned=%d tax=%d tx=%s",
		wallet, presaleId, returned, tax, signature)
	return &SettlementReceipt{
		PresaleId:      presaleId,
		Wallet:         wallet,
		Signature:      signature,
		AmountLamports: participant.AmountLamports,
		TaxLamports:    tax,
		PaidLamports:   returned,
	}, nil
}

// Refund 全额退款（免税，网络费由托管承担）。已确认的存款只有预售失败后
// 才能退款；未确认的存款从未计入募集统计，任何状态下都可原路退回。
func (l *PresaleLogic) Refund(ctx context.Context, presaleId, wallet string) (*SettlementReceipt, error) {
	unlock := l.store.LockPresale(presaleId)
	defer unlock()

	presale, err := l.store.GetById(presaleId)
	if err != nil {
		return nil, err
	}
	presale, err = l.reconcile(presale)
	if err != nil {
		return nil, err
	}

	participant, err := l.store.GetUnresolved(presaleId, wallet)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, l.settledOrMissing(presaleId, wallet)
	}

	if participant.Confirmed &&
		presale.Status != model.PresaleStatusFailed && presale.Status != model.PresaleStatusRefunding {
		return nil, &PreconditionError{Msg: "预售未失败，无法退款"}
	}

	if err := l.ensureEscrowBalance(ctx, participant.AmountLamports); err != nil {
		return nil, err
	}

	signature, err := l.wallet.Transfer(ctx, []solana.TransferInstruction{
		{To: wallet, Lamports: participant.AmountLamports},
	})
	if err != nil {
		logger.Error("Refund transfer failed for %s in presale %s: %v", wallet, presaleId, err)
		return nil, &ExternalError{Msg: "退款打款失败", Err: err}
	}

	if err := l.store.MarkRefunded(presaleId, wallet, signature); err != nil {
		return nil, err
	}

	// 首笔退款将failed推进到refunding
	if presale.Status == model.PresaleStatusFailed {
		if err := l.store.UpdateStatus(presaleId, model.PresaleStatusRefunding, nil); err != nil {
			logger.Error("Failed to mark presale %s as refunding: %v", presaleId, err)
		}
	}

	logger.Info("Wallet %s refunded from presale %s: amount=%d tx=%s",
		wallet, presaleId, participant.AmountLamports, signature)
	return &SettlementReceipt{
		PresaleId:      presaleId,
		Wallet:         wallet,
		Signature:      signature,
		AmountLamports: participant.AmountLamports,
		PaidLamports:   participant.AmountLamports,
	}, nil
}

// Launch 手动触发发射。force只绕过满员校验，绝不绕过已发射校验。
func (l *PresaleLogic) Launch(ctx context.Context, presaleId string, force bool) (*LaunchResult, error) {
	unlock := l.store.LockPresale(presaleId)
	defer unlock()

	presale, err := l.store.GetById(presaleId)
	if err != nil {
		return nil, err
	}
	presale, err = l.reconcile(presale)
	if err != nil {
		return nil, err
	}

	if presale.Status == model.PresaleStatusLaunched {
		return nil, &PreconditionError{Msg: "预售已发射"}
	}
	if presale.Status != model.PresaleStatusActive {
		return nil, &PreconditionError{Msg: "预售已失败，无法发射"}
	}
	if !presale.IsFull() && !force {
		return nil, &PreconditionError{Msg: "预售未满员"}
	}

	return l.launch.Execute(ctx, presale)
}

// Stats 全局统计
func (l *PresaleLogic) Stats() (*store.Stats, error) {
	return l.store.GetStats()
}

// SweepExpired 批量推进已过期的active预售到failed，返回处理数量。
// 与reconcile同一判定，定时任务只是兜底，不承担正确性。
func (l *PresaleLogic) SweepExpired() ([]model.PresaleModel, error) {
	return l.store.ListExpiredActive(time.Now())
}

// ExpirePresale 将单个过期预售推进到failed
func (l *PresaleLogic) ExpirePresale(presaleId string) error {
	unlock := l.store.LockPresale(presaleId)
	defer unlock()

	presale, err := l.store.GetById(presaleId)
	if err != nil {
		return err
	}
	_, err = l.reconcile(presale)
	return err
}

// reconcile 惰性过期判定的唯一实现。所有入口都先经过这里，
// 过期的active预售在任何读写之前先推进到failed。
func (l *PresaleLogic) reconcile(presale *model.PresaleModel) (*model.PresaleModel, error) {
	if presale.Status != model.PresaleStatusActive || !presale.IsExpired(time.Now()) {
		return presale, nil
	}

	// 状态条件在SQL里判定：快照可能已过期，绝不能把并发定稿的launched改回failed
	flipped, err := l.store.ExpireIfActive(presale.Id)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return l.store.GetById(presale.Id)
	}
	presale.Status = model.PresaleStatusFailed
	logger.Info("Presale %s expired, marked as failed", presale.Id)
	return presale, nil
}

// resolveSettleTarget 定位待结算的已确认记录
func (l *PresaleLogic) resolveSettleTarget(presaleId, wallet string) (*model.ParticipantModel, error) {
	participant, err := l.store.GetUnresolved(presaleId, wallet)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, l.settledOrMissing(presaleId, wallet)
	}
	if !participant.Confirmed {
		return nil, &PreconditionError{Msg: "存款尚未确认，无法结算"}
	}
	return participant, nil
}

// settledOrMissing 无在途记录时区分"已结算"与"从未参与"，
// 重复结算返回携带原始签名的幂等回执错误。
func (l *PresaleLogic) settledOrMissing(presaleId, wallet string) error {
	resolved, err := l.store.GetLatestResolved(presaleId, wallet)
	if err != nil {
		return err
	}
	if resolved == nil {
		return &PreconditionError{Msg: "该钱包未参与此预售"}
	}
	return &store.AlreadyResolvedError{Signature: resolved.SettleTxHash}
}

// ensureEscrowBalance 出账前校验托管链上余额足以覆盖转账与网络费
func (l *PresaleLogic) ensureEscrowBalance(ctx context.Context, amount int64) error {
	balance, err := l.verifier.Balance(ctx, l.wallet.Address())
	if err != nil {
		return &ExternalError{Msg: "托管余额查询失败", Err: err}
	}
	required := amount + l.cfg.Chain.NetworkFeeLamports
	if balance < required {
		logger.Error("Escrow balance %d insufficient for settlement of %d (+fee)", balance, amount)
		return &ExternalError{Msg: fmt.Sprintf("托管余额不足: 当前%d, 需要%d", balance, required)}
	}
	return nil
}
