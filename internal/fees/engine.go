package fees

import (
	"errors"
	"fmt"

	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
	"github.com/BAGS69FUN/BAGS69/internal/store"
)

var (
	// ErrNoParticipants 没有可分润的参与者
	ErrNoParticipants = errors.New("no confirmed participants to allocate")
	// ErrEmptyPool 募集总额为零
	ErrEmptyPool = errors.New("presale pool is empty")
)

// SumInvariantError 分润总额不等于10000 bps。致命错误，调用方必须中止发射。
type SumInvariantError struct {
	Sum int
}

func (e *SumInvariantError) Error() string {
	return fmt.Sprintf("fee share sum is %d bps, expected %d", e.Sum, policy.TotalBps)
}

// Allocation 单个钱包的分润
type Allocation struct {
	Address string `json:"address"`
	Bps     int    `json:"bps"`
}

// Engine 分润计算引擎。在预售满员定格后计算创建者与全部有效参与者的分润，
// 保证总额恰好10000 bps。
type Engine struct {
	store *store.Store
}

// NewEngine 创建分润计算引擎
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Compute 计算指定预售的分润分布并持久化到各参与记录。
// 返回有序列表：创建者在前，参与者按加入顺序。
func (e *Engine) Compute(presaleId string) ([]Allocation, error) {
	presale, err := e.store.GetById(presaleId)
	if err != nil {
		return nil, err
	}

	participants, err := e.store.GetActiveParticipants(presaleId)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}
	if presale.TotalLamports <= 0 {
		return nil, ErrEmptyPool
	}

	// 创建者拿固定份额，与出资无关
	allocations := make([]Allocation, 0, len(participants)+1)
	allocations = append(allocations, Allocation{
		Address: presale.CreatorAddress,
		Bps:     policy.CreatorFeeBps,
	})

	// 参与者按出资比例向下取整分配
	sum := policy.CreatorFeeBps
	for _, p := range participants {
		bps := policy.ParticipantShare(p.AmountLamports, presale.TotalLamports)
		allocations = append(allocations, Allocation{Address: p.Address, Bps: bps})
		sum += bps
	}

	// 向下取整最多欠分 N-1 bps，差额补给最后一位参与者
	if shortfall := policy.TotalBps - sum; shortfall > 0 {
		allocations[len(allocations)-1].Bps += shortfall
		sum += shortfall
		logger.Debug("Fee share shortfall of %d bps assigned to last participant of presale %s",
			shortfall, presaleId)
	}

	// 总额校验。失败即致命，绝不能带着错误的分布去调外部接口。
	if sum != policy.TotalBps {
		return nil, &SumInvariantError{Sum: sum}
	}

	// 持久化各参与记录的分润
	shares := make(map[int64]int, len(participants))
	for i, p := range participants {
		shares[p.Id] = allocations[i+1].Bps
	}
	if err := e.store.SetFeeShares(shares); err != nil {
		return nil, fmt.Errorf("failed to persist fee shares: %w", err)
	}

	return allocations, nil
}
