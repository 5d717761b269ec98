package handler

import (
	"math"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// SOL与lamports的换算只发生在HTTP边界，内部一律lamports

// SolToLamports SOL转lamports
func SolToLamports(sol float64) int64 {
	return int64(math.Round(sol * float64(policy.LamportsPerSol)))
}

// LamportsToSol lamports转SOL
func LamportsToSol(lamports int64) float64 {
	return float64(lamports) / float64(policy.LamportsPerSol)
}

// 请求模型

// CreatePresaleRequest 创建预售请求
type CreatePresaleRequest struct {
	CreatorAddress     string  `json:"creatorAddress" binding:"required"`
	LaunchFeeTxHash    string  `json:"launchFeeTxHash" binding:"required"`
	TokenName          string  `json:"tokenName" binding:"required"`
	TokenSymbol        string  `json:"tokenSymbol" binding:"required"`
	TokenDescription   string  `json:"tokenDescription"`
	ImageURL           string  `json:"imageUrl"`
	Twitter            string  `json:"twitter"`
	Telegram           string  `json:"telegram"`
	Website            string  `json:"website"`
	MinAmountSol       float64 `json:"minAmountSol"`
	MaxAmountSol       float64 `json:"maxAmountSol"`
	TargetParticipants int     `json:"targetParticipants" binding:"required"`
	DurationMinutes    int     `json:"durationMinutes" binding:"required"`
}

// JoinPresaleRequest 加入预售请求
type JoinPresaleRequest struct {
	Wallet        string  `json:"wallet" binding:"required"`
	AmountSol     float64 `json:"amountSol" binding:"required"`
	DepositTxHash string  `json:"depositTxHash" binding:"required"`
}

// SettleRequest 退出/退款请求
type SettleRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// LaunchRequest 手动发射请求
type LaunchRequest struct {
	Force bool `json:"force"`
}

// 响应模型

// PresaleResponse 预售响应模型
type PresaleResponse struct {
	Id                 string     `json:"id"`
	CreatorAddress     string     `json:"creatorAddress"`
	TokenName          string     `json:"tokenName"`
	TokenSymbol        string     `json:"tokenSymbol"`
	TokenDescription   string     `json:"tokenDescription"`
	ImageURL           string     `json:"imageUrl"`
	Twitter            string     `json:"twitter,omitempty"`
	Telegram           string     `json:"telegram,omitempty"`
	Website            string     `json:"website,omitempty"`
	MinAmountSol       float64    `json:"minAmountSol"`
	MaxAmountSol       float64    `json:"maxAmountSol"`
	TargetParticipants int        `json:"targetParticipants"`
	ParticipantCount   int        `json:"participantCount"`
	TotalRaisedSol     float64    `json:"totalRaisedSol"`
	DurationMinutes    int        `json:"durationMinutes"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	Status             string     `json:"status"`
	TokenMint          string     `json:"tokenMint,omitempty"`
	LaunchTxSignature  string     `json:"launchTxSignature,omitempty"`
	LaunchedAt         *time.Time `json:"launchedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ParticipantResponse 参与记录响应模型
type ParticipantResponse struct {
	Address      string    `json:"address"`
	AmountSol    float64   `json:"amountSol"`
	Confirmed    bool      `json:"confirmed"`
	Refunded     bool      `json:"refunded"`
	Withdrawn    bool      `json:"withdrawn"`
	FeeShareBps  int       `json:"feeShareBps,omitempty"`
	SettleTxHash string    `json:"settleTxHash,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// PresaleDetailResponse 预售详情响应
type PresaleDetailResponse struct {
	Presale      PresaleResponse       `json:"presale"`
	Participants []ParticipantResponse `json:"participants"`
	Market       *launchpad.MarketData `json:"market,omitempty"`
}

// JoinResponse 加入预售响应
type JoinResponse struct {
	Presale     PresaleResponse     `json:"presale"`
	Participant ParticipantResponse `json:"participant"`
	Launch      *logic.LaunchResult `json:"launch,omitempty"`
}

// SettleResponse 结算回执响应
type SettleResponse struct {
	PresaleId string  `json:"presaleId"`
	Wallet    string  `json:"wallet"`
	Signature string  `json:"signature"`
	AmountSol float64 `json:"amountSol"`
	TaxSol    float64 `json:"taxSol"`
	PaidSol   float64 `json:"paidSol"`
}

// StatsResponse 全局统计响应
type StatsResponse struct {
	TotalPresales     int64   `json:"totalPresales"`
	ActivePresales    int64   `json:"activePresales"`
	LaunchedPresales  int64   `json:"launchedPresales"`
	FailedPresales    int64   `json:"failedPresales"`
	RefundingPresales int64   `json:"refundingPresales"`
	TotalRaisedSol    float64 `json:"totalRaisedSol"`
	TotalParticipants int64   `json:"totalParticipants"`
}

// 转换函数

// ToPresaleResponse 将数据库模型转换为响应模型
func ToPresaleResponse(presale *model.PresaleModel) PresaleResponse {
	return PresaleResponse{
		Id:                 presale.Id,
		CreatorAddress:     presale.CreatorAddress,
		TokenName:          presale.TokenName,
		TokenSymbol:        presale.TokenSymbol,
		TokenDescription:   presale.TokenDescription,
		ImageURL:           presale.ImageURL,
		Twitter:            presale.Twitter,
		Telegram:           presale.Telegram,
		Website:            presale.Website,
		MinAmountSol:       LamportsToSol(presale.MinAmount),
		MaxAmountSol:       LamportsToSol(presale.MaxAmount),
		TargetParticipants: presale.TargetParticipants,
		ParticipantCount:   presale.ParticipantCount,
		TotalRaisedSol:     LamportsToSol(presale.TotalLamports),
		DurationMinutes:    presale.DurationMinutes,
		ExpiresAt:          presale.ExpiresAt,
		Status:             string(presale.Status),
		TokenMint:          presale.TokenMint,
		LaunchTxSignature:  presale.LaunchTxSignature,
		LaunchedAt:         presale.LaunchedAt,
		CreatedAt:          presale.CreatedAt,
	}
}

// ToPresaleResponseList 将数据库模型列表转换为响应模型列表
func ToPresaleResponseList(presales []model.PresaleModel) []PresaleResponse {
	result := make([]PresaleResponse, len(presales))
	for i, presale := range presales {
		result[i] = ToPresaleResponse(&presale)
	}
	return result
}

// ToParticipantResponse 将参与记录转换为响应模型
func ToParticipantResponse(record *model.ParticipantModel) ParticipantResponse {
	return ParticipantResponse{
		Address:      record.Address,
		AmountSol:    LamportsToSol(record.AmountLamports),
		Confirmed:    record.Confirmed,
		Refunded:     record.Refunded,
		Withdrawn:    record.Withdrawn,
		FeeShareBps:  record.FeeShareBps,
		SettleTxHash: record.SettleTxHash,
		JoinedAt:     record.CreatedAt,
	}
}

// ToParticipantResponseList 将参与记录列表转换为响应模型列表
func ToParticipantResponseList(records []model.ParticipantModel) []ParticipantResponse {
	result := make([]ParticipantResponse, len(records))
	for i, record := range records {
		result[i] = ToParticipantResponse(&record)
	}
	return result
}

// ToSettleResponse 将结算回执转换为响应模型
func ToSettleResponse(receipt *logic.SettlementReceipt) SettleResponse {
	return SettleResponse{
		PresaleId: receipt.PresaleId,
		Wallet:    receipt.Wallet,
		Signature: receipt.Signature,
		AmountSol: LamportsToSol(receipt.AmountLamports),
		TaxSol:    LamportsToSol(receipt.TaxLamports),
		PaidSol:   LamportsToSol(receipt.PaidLamports),
	}
}
