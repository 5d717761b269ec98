package model

import (
	"time"
)

// PresaleModel 预售轮次模型
type PresaleModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(16)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 创建者信息
	CreatorAddress  string `json:"creator_address" gorm:"not null;type:varchar(44);index"`
	LaunchFeeTxHash string `json:"launch_fee_tx_hash" gorm:"type:varchar(88)"`

	// 代币信息
	TokenName        string `json:"token_name" gorm:"not null"`
	TokenSymbol      string `json:"token_symbol" gorm:"not null;type:varchar(10)"`
	TokenDescription string `json:"token_description" gorm:"type:text"`
	ImageURL         string `json:"image_url"`
	Twitter          string `json:"twitter"`
	Telegram         string `json:"telegram"`
	Website          string `json:"website"`

	// 预售规则
	MinAmount          int64 `json:"min_amount" gorm:"not null"` // 单钱包最小存款 (lamports)
	MaxAmount          int64 `json:"max_amount" gorm:"not null"` // 单钱包最大存款 (lamports)
	TargetParticipants int   `json:"target_participants" gorm:"not null"`
	DurationMinutes    int   `json:"duration_minutes" gorm:"not null"`

	// 时间信息
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`

	// 状态
	Status PresaleStatus `json:"status" gorm:"default:'active';index"`

	// 募集进度
	TotalLamports    int64 `json:"total_lamports" gorm:"default:0"`
	ParticipantCount int   `json:"participant_count" gorm:"default:0"`

	// 发射结果（发射开始/成功后写入）
	TokenMint         string     `json:"token_mint" gorm:"type:varchar(44)"`
	TokenMetadataUri  string     `json:"token_metadata_uri"`
	FeeShareConfigKey string     `json:"fee_share_config_key" gorm:"type:varchar(44)"`
	LaunchTxSignature string     `json:"launch_tx_signature" gorm:"type:varchar(88)"`
	LaunchedAt        *time.Time `json:"launched_at"`
}

// TableName 自定义表名
func (PresaleModel) TableName() string {
	return "presale"
}

// PresaleStatus 预售状态
type PresaleStatus string

const (
	PresaleStatusActive    PresaleStatus = "active"    // 进行中
	PresaleStatusLaunched  PresaleStatus = "launched"  // 已发射
	PresaleStatusFailed    PresaleStatus = "failed"    // 已失败（到期未满员）
	PresaleStatusRefunding PresaleStatus = "refunding" // 退款中
)

// IsExpired 是否已过期
func (p *PresaleModel) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// IsFull 是否已满员
func (p *PresaleModel) IsFull() bool {
	return p.ParticipantCount >= p.TargetParticipants
}
