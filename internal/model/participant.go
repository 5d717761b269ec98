package model

import (
	"time"
)

// ParticipantModel 参与记录。自增Id即加入顺序；同一钱包退出后再加入会产生新记录，
// 历史记录永久保留并排除在统计之外。
type ParticipantModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PresaleId      string `json:"presale_id" gorm:"not null;type:varchar(16);index"`
	Address        string `json:"address" gorm:"not null;type:varchar(44);index"`
	AmountLamports int64  `json:"amount_lamports" gorm:"not null"`
	DepositTxHash  string `json:"deposit_tx_hash" gorm:"uniqueIndex;type:varchar(88)"`

	// 生命周期标志。refunded/withdrawn 互斥且终态。
	Confirmed bool `json:"confirmed" gorm:"default:false"`
	Refunded  bool `json:"refunded" gorm:"default:false"`
	Withdrawn bool `json:"withdrawn" gorm:"default:false"`

	// 结算信息
	SettleTxHash string `json:"settle_tx_hash" gorm:"type:varchar(88)"`
	TaxLamports  int64  `json:"tax_lamports" gorm:"default:0"`

	// 发射时计算的分润（bps）
	FeeShareBps int `json:"fee_share_bps" gorm:"default:0"`
}

// TableName 自定义表名
func (ParticipantModel) TableName() string {
	return "participant"
}

// IsResolved 是否已结算（退款或退出）
func (p *ParticipantModel) IsResolved() bool {
	return p.Refunded || p.Withdrawn
}
