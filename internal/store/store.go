package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"
)

var (
	// ErrPresaleNotFound 预售不存在
	ErrPresaleNotFound = errors.New("presale not found")
	// ErrParticipantNotFound 参与记录不存在
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrPresaleFull 预售已满员，确认被拒绝
	ErrPresaleFull = errors.New("presale is full")
)

// AlreadyResolvedError 参与记录已结算，携带原结算交易签名，调用方不得重复打款
type AlreadyResolvedError struct {
	Signature string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("participant already resolved (settlement tx: %s)", e.Signature)
}

// Store 账本存储。预售与参与记录的唯一持有者，所有变更同步落库，
// 关键路径（确认+满员判定、结算）由每个预售一把互斥锁串行化。
type Store struct {
	db    *gorm.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New 创建账本存储
func New(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// LockPresale 获取指定预售的互斥锁，返回解锁函数。
// 同一预售的确认、结算、发射必须在持锁状态下进行。
func (s *Store) LockPresale(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Create 创建预售，分配防碰撞短码Id后落库
func (s *Store) Create(presale *model.PresaleModel) error {
	// 短码碰撞时重试
	for attempt := 0; attempt < 5; attempt++ {
		presale.Id = generateShortId()
		err := s.db.Create(presale).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return errors.New("failed to allocate presale id")
}

// generateShortId 生成8位base58短码
func generateShortId() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	encoded := base58.Encode(buf)
	return encoded[:8]
}

// GetById 按Id获取预售
func (s *Store) GetById(id string) (*model.PresaleModel, error) {
	var presale model.PresaleModel
	if err := s.db.First(&presale, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresaleNotFound
		}
		return nil, err
	}
	return &presale, nil
}

// ListActive 获取进行中且未过期的预售
func (s *Store) ListActive(now time.Time) ([]model.PresaleModel, error) {
	var presales []model.PresaleModel
	err := s.db.
		Where("status = ? AND expires_at > ?", model.PresaleStatusActive, now).
		Order("created_at DESC").
		Find(&presales).Error
	return presales, err
}

// ListAll 分页获取全部预售，按创建时间倒序
func (s *Store) ListAll(limit, offset int) ([]model.PresaleModel, int64, error) {
	var total int64
	if err := s.db.Model(&model.PresaleModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var presales []model.PresaleModel
	err := s.db.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&presales).Error
	return presales, total, err
}

// ListByStatus 获取指定状态的预售
func (s *Store) ListByStatus(statuses ...model.PresaleStatus) ([]model.PresaleModel, error) {
	var presales []model.PresaleModel
	err := s.db.
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&presales).Error
	return presales, err
}

// ListExpiredActive 获取已过期但状态仍为active的预售
func (s *Store) ListExpiredActive(now time.Time) ([]model.PresaleModel, error) {
	var presales []model.PresaleModel
	err := s.db.
		Where("status = ? AND expires_at <= ?", model.PresaleStatusActive, now).
		Find(&presales).Error
	return presales, err
}

// UpdateStatus 更新预售状态并合并附加字段
func (s *Store) UpdateStatus(id string, status model.PresaleStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}

	res := s.db.Model(&model.PresaleModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPresaleNotFound
	}
	return nil
}

// ExpireIfActive 仅当预售仍为active时推进到failed，返回是否发生翻转。
// 状态条件在SQL里判定，过期的快照不可能覆盖并发定稿的launched。
func (s *Store) ExpireIfActive(id string) (bool, error) {
	res := s.db.Model(&model.PresaleModel{}).
		Where("id = ? AND status = ?", id, model.PresaleStatusActive).
		Update("status", model.PresaleStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LaunchFeeTxUsed 创建费交易是否已被其他预售占用
func (s *Store) LaunchFeeTxUsed(txHash string) (bool, error) {
	var count int64
	err := s.db.Model(&model.PresaleModel{}).
		Where("launch_fee_tx_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}

// GetUnresolved 获取钱包在指定预售下的未结算记录，不存在时返回nil
func (s *Store) GetUnresolved(presaleId, wallet string) (*model.ParticipantModel, error) {
	var participant model.ParticipantModel
	err := s.db.
		Where("presale_id = ? AND address = ? AND refunded = ? AND withdrawn = ?",
			presaleId, wallet, false, false).
		Order("id DESC").
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

// GetLatestResolved 获取钱包在指定预售下最近一条已结算记录，不存在时返回nil
func (s *Store) GetLatestResolved(presaleId, wallet string) (*model.ParticipantModel, error) {
	var participant model.ParticipantModel
	err := s.db.
		Where("presale_id = ? AND address = ? AND (refunded = ? OR withdrawn = ?)",
			presaleId, wallet, true, true).
		Order("id DESC").
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

// GetParticipants 获取预售全部参与记录，按加入顺序
func (s *Store) GetParticipants(presaleId string) ([]model.ParticipantModel, error) {
	var participants []model.ParticipantModel
	err := s.db.
		Where("presale_id = ?", presaleId).
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}

// GetActiveParticipants 获取已确认且未结算的参与记录，按加入顺序。
// 该集合即统计口径：total_lamports 与 participant_count 只统计这些记录。
func (s *Store) GetActiveParticipants(presaleId string) ([]model.ParticipantModel, error) {
	var participants []model.ParticipantModel
	err := s.db.
		Where("presale_id = ? AND confirmed = ? AND refunded = ? AND withdrawn = ?",
			presaleId, true, false, false).
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}

// AddParticipant 新增未确认参与记录。
// 同一钱包在同一预售已有未结算记录时拒绝（返回nil记录），保证一钱包一笔在途存款。
func (s *Store) AddParticipant(record *model.ParticipantModel) (*model.ParticipantModel, error) {
	existing, err := s.GetUnresolved(record.PresaleId, record.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	record.Confirmed = false
	record.Refunded = false
	record.Withdrawn = false
	if err := s.db.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// ConfirmParticipant 将未确认记录置为已确认，并原子地累加预售统计。
// SQL层以 participant_count < target_participants 作为守卫，
// 并发确认不可能使人数越过目标上限。返回更新后的预售。
func (s *Store) ConfirmParticipant(presaleId, wallet string) (*model.PresaleModel, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var participant model.ParticipantModel
		if err := tx.
			Where("presale_id = ? AND address = ? AND confirmed = ? AND refunded = ? AND withdrawn = ?",
				presaleId, wallet, false, false, false).
			Order("id DESC").
			First(&participant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}

		res := tx.Model(&model.PresaleModel{}).
			Where("id = ? AND participant_count < target_participants", presaleId).
			Updates(map[string]interface{}{
				"total_lamports":    gorm.Expr("total_lamports + ?", participant.AmountLamports),
				"participant_count": gorm.Expr("participant_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPresaleFull
		}

		return tx.Model(&participant).Update("confirmed", true).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetById(presaleId)
}

// MarkRefunded 标记参与记录为已退款并扣减预售统计
func (s *Store) MarkRefunded(presaleId, wallet, settleTxHash string) error {
	return s.settle(presaleId, wallet, map[string]interface{}{
		"refunded":       true,
		"settle_tx_hash": settleTxHash,
	})
}

// MarkWithdrawn 标记参与记录为已退出，记录税额并扣减预售统计
func (s *Store) MarkWithdrawn(presaleId, wallet, settleTxHash string, taxLamports int64) error {
	return s.settle(presaleId, wallet, map[string]interface{}{
		"withdrawn":      true,
		"settle_tx_hash": settleTxHash,
		"tax_lamports":   taxLamports,
	})
}

// settle 结算公共路径。已结算记录返回AlreadyResolvedError并携带原结算签名。
func (s *Store) settle(presaleId, wallet string, updates map[string]interface{}) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var participant model.ParticipantModel
		err := tx.
			Where("presale_id = ? AND address = ? AND refunded = ? AND withdrawn = ?",
				presaleId, wallet, false, false).
			Order("id DESC").
			First(&participant).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			// 无未结算记录：若存在已结算记录则返回幂等错误
			var resolved model.ParticipantModel
			err = tx.
				Where("presale_id = ? AND address = ?", presaleId, wallet).
				Order("id DESC").
				First(&resolved).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrParticipantNotFound
				}
				return err
			}
			return &AlreadyResolvedError{Signature: resolved.SettleTxHash}
		}

		if err := tx.Model(&participant).Updates(updates).Error; err != nil {
			return err
		}

		// 未确认的记录从未计入统计，不需要扣减
		if !participant.Confirmed {
			return nil
		}

		return tx.Model(&model.PresaleModel{}).
			Where("id = ?", presaleId).
			Updates(map[string]interface{}{
				"total_lamports":    gorm.Expr("total_lamports - ?", participant.AmountLamports),
				"participant_count": gorm.Expr("participant_count - 1"),
			}).Error
	})
}

// SetFeeShares 持久化各参与记录的分润bps
func (s *Store) SetFeeShares(shares map[int64]int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for id, bps := range shares {
			if err := tx.Model(&model.ParticipantModel{}).
				Where("id = ?", id).
				Update("fee_share_bps", bps).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats 聚合统计
type Stats struct {
	TotalPresales     int64 `json:"total_presales"`
	ActivePresales    int64 `json:"active_presales"`
	LaunchedPresales  int64 `json:"launched_presales"`
	FailedPresales    int64 `json:"failed_presales"`
	RefundingPresales int64 `json:"refunding_presales"`
	TotalRaised       int64 `json:"total_raised"`
	TotalParticipants int64 `json:"total_participants"`
}

// GetStats 获取全局统计信息
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats

	if err := s.db.Model(&model.PresaleModel{}).Count(&stats.TotalPresales).Error; err != nil {
		return nil, err
	}

	counts := []struct {
		status model.PresaleStatus
		dest   *int64
	}{
		{model.PresaleStatusActive, &stats.ActivePresales},
		{model.PresaleStatusLaunched, &stats.LaunchedPresales},
		{model.PresaleStatusFailed, &stats.FailedPresales},
		{model.PresaleStatusRefunding, &stats.RefundingPresales},
	}
	for _, c := range counts {
		if err := s.db.Model(&model.PresaleModel{}).
			Where("status = ?", c.status).
			Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	if err := s.db.Model(&model.PresaleModel{}).
		Select("COALESCE(SUM(total_lamports), 0)").
		Scan(&stats.TotalRaised).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&model.ParticipantModel{}).
		Where("confirmed = ? AND refunded = ? AND withdrawn = ?", true, false, false).
		Count(&stats.TotalParticipants).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
