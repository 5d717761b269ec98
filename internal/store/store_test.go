package store

import (
	"testing"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.PresaleModel{}, &model.ParticipantModel{}))
	return New(db)
}

func createTestPresale(t *testing.T, s *Store, target int) *model.PresaleModel {
	presale := &model.PresaleModel{
		CreatorAddress:     "creator",
		LaunchFeeTxHash:    "fee-tx-" + time.Now().Format("150405.000000000"),
		TokenName:          "Test Token",
		TokenSymbol:        "TEST",
		MinAmount:          10_000_000,
		MaxAmount:          1_000_000_000,
		TargetParticipants: target,
		DurationMinutes:    10,
		ExpiresAt:          time.Now().Add(10 * time.Minute),
		Status:             model.PresaleStatusActive,
	}
	require.NoError(t, s.Create(presale))
	return presale
}

func joinConfirmed(t *testing.T, s *Store, presaleId, wallet string, amount int64) {
	_, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presaleId,
		Address:        wallet,
		AmountLamports: amount,
		DepositTxHash:  presaleId + "-" + wallet + "-deposit",
	})
	require.NoError(t, err)
	_, err = s.ConfirmParticipant(presaleId, wallet)
	require.NoError(t, err)
}

func TestCreateAssignsShortId(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	assert.Len(t, presale.Id, 8)

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, presale.TokenSymbol, got.TokenSymbol)
	assert.Equal(t, model.PresaleStatusActive, got.Status)
}

func TestGetByIdNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetById("missing")
	assert.ErrorIs(t, err, ErrPresaleNotFound)
}

func TestLaunchFeeTxUsed(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	used, err := s.LaunchFeeTxUsed(presale.LaunchFeeTxHash)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = s.LaunchFeeTxUsed("unseen-tx")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestAddParticipantRejectsPendingDuplicate(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	first, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-1",
		AmountLamports: 50_000_000,
		DepositTxHash:  "deposit-1",
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	// 同一钱包的在途记录未结算，再次加入被拒
	second, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-1",
		AmountLamports: 60_000_000,
		DepositTxHash:  "deposit-2",
	})
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestAddParticipantRejectsReusedDepositTx(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)
	other := createTestPresale(t, s, 3)

	_, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-1",
		AmountLamports: 50_000_000,
		DepositTxHash:  "shared-deposit",
	})
	require.NoError(t, err)

	// 存款交易签名全局唯一，跨预售也不能复用
	_, err = s.AddParticipant(&model.ParticipantModel{
		PresaleId:      other.Id,
		Address:        "wallet-2",
		AmountLamports: 50_000_000,
		DepositTxHash:  "shared-deposit",
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestConfirmParticipantAccumulatesTotals(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)
	joinConfirmed(t, s, presale.Id, "wallet-2", 70_000_000)

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)
	assert.Equal(t, int64(120_000_000), got.TotalLamports)
}

func TestConfirmParticipantEnforcesCap(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 1)

	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)

	_, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-2",
		AmountLamports: 50_000_000,
		DepositTxHash:  "deposit-2",
	})
	require.NoError(t, err)

	// SQL守卫拒绝越过目标人数的确认
	_, err = s.ConfirmParticipant(presale.Id, "wallet-2")
	assert.ErrorIs(t, err, ErrPresaleFull)

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
}

func TestConfirmParticipantWithoutRecord(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	_, err := s.ConfirmParticipant(presale.Id, "ghost")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestMarkWithdrawnDecrementsTotals(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)
	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)
	joinConfirmed(t, s, presale.Id, "wallet-2", 70_000_000)

	require.NoError(t, s.MarkWithdrawn(presale.Id, "wallet-1", "settle-1", 2_500_000))

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	assert.Equal(t, int64(70_000_000), got.TotalLamports)

	participants, err := s.GetParticipants(presale.Id)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.True(t, participants[0].Withdrawn)
	assert.Equal(t, int64(2_500_000), participants[0].TaxLamports)
	assert.Equal(t, "settle-1", participants[0].SettleTxHash)
}

func TestSettleIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)
	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)

	require.NoError(t, s.MarkRefunded(presale.Id, "wallet-1", "settle-1"))

	// 重复结算返回幂等错误并携带首次结算签名，统计不被二次扣减
	err := s.MarkRefunded(presale.Id, "wallet-1", "settle-2")
	var resolved *AlreadyResolvedError
	require.ErrorAs(t, err, &resolved)
	assert.Equal(t, "settle-1", resolved.Signature)

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
	assert.Equal(t, int64(0), got.TotalLamports)
}

func TestSettleUnconfirmedSkipsTotals(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	_, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-1",
		AmountLamports: 50_000_000,
		DepositTxHash:  "deposit-1",
	})
	require.NoError(t, err)

	// 未确认记录从未计入统计，结算也不扣减
	require.NoError(t, s.MarkRefunded(presale.Id, "wallet-1", "settle-1"))

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
	assert.Equal(t, int64(0), got.TotalLamports)
}

func TestRejoinAfterWithdrawCreatesNewRecord(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)
	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)

	require.NoError(t, s.MarkWithdrawn(presale.Id, "wallet-1", "settle-1", 2_500_000))

	record, err := s.AddParticipant(&model.ParticipantModel{
		PresaleId:      presale.Id,
		Address:        "wallet-1",
		AmountLamports: 80_000_000,
		DepositTxHash:  "deposit-rejoin",
	})
	require.NoError(t, err)
	require.NotNil(t, record)

	_, err = s.ConfirmParticipant(presale.Id, "wallet-1")
	require.NoError(t, err)

	// 历史记录保留，活跃口径只剩新记录
	participants, err := s.GetParticipants(presale.Id)
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	active, err := s.GetActiveParticipants(presale.Id)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(80_000_000), active[0].AmountLamports)
}

func TestListExpiredActive(t *testing.T) {
	s := newTestStore(t)
	expired := createTestPresale(t, s, 3)
	createTestPresale(t, s, 3)

	require.NoError(t, s.UpdateStatus(expired.Id, model.PresaleStatusActive, map[string]interface{}{
		"expires_at": time.Now().Add(-time.Minute),
	}))

	got, err := s.ListExpiredActive(time.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.Id, got[0].Id)
}

func TestListByStatus(t *testing.T) {
	s := newTestStore(t)
	failed := createTestPresale(t, s, 3)
	createTestPresale(t, s, 3)

	require.NoError(t, s.UpdateStatus(failed.Id, model.PresaleStatusFailed, nil))

	got, err := s.ListByStatus(model.PresaleStatusFailed, model.PresaleStatusRefunding)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, failed.Id, got[0].Id)
}

func TestExpireIfActiveGuardsStatus(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)

	flipped, err := s.ExpireIfActive(presale.Id)
	require.NoError(t, err)
	assert.True(t, flipped)

	got, err := s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusFailed, got.Status)

	// 已定稿的launched不会被过期翻转覆盖
	require.NoError(t, s.UpdateStatus(presale.Id, model.PresaleStatusLaunched, nil))

	flipped, err = s.ExpireIfActive(presale.Id)
	require.NoError(t, err)
	assert.False(t, flipped)

	got, err = s.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusLaunched, got.Status)
}

func TestGetLatestResolved(t *testing.T) {
	s := newTestStore(t)
	presale := createTestPresale(t, s, 3)
	joinConfirmed(t, s, presale.Id, "wallet-1", 50_000_000)

	resolved, err := s.GetLatestResolved(presale.Id, "wallet-1")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	require.NoError(t, s.MarkWithdrawn(presale.Id, "wallet-1", "settle-1", 2_500_000))

	resolved, err = s.GetLatestResolved(presale.Id, "wallet-1")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "settle-1", resolved.SettleTxHash)

	resolved, err = s.GetLatestResolved(presale.Id, "ghost")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	active := createTestPresale(t, s, 3)
	launched := createTestPresale(t, s, 2)

	joinConfirmed(t, s, active.Id, "wallet-1", 50_000_000)
	joinConfirmed(t, s, launched.Id, "wallet-2", 70_000_000)
	require.NoError(t, s.UpdateStatus(launched.Id, model.PresaleStatusLaunched, nil))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalPresales)
	assert.Equal(t, int64(1), stats.ActivePresales)
	assert.Equal(t, int64(1), stats.LaunchedPresales)
	assert.Equal(t, int64(120_000_000), stats.TotalRaised)
	assert.Equal(t, int64(2), stats.TotalParticipants)
}
