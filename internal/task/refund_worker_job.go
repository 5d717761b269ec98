package task

import (
	"context"
	"sync"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

const refundWorkerPoolSize = 4

// RefundWorkerJob 自动退款任务。失败预售的参与者可以随时主动领取退款，
// 本任务额外把未领取的退款主动推送出去。逐笔走与手动退款完全相同的
// 结算路径，天然幂等。
type RefundWorkerJob struct {
	store        *store.Store
	presaleLogic *logic.PresaleLogic
	config       *config.Config
}

// NewRefundWorkerJob 创建自动退款任务
func NewRefundWorkerJob(s *store.Store, presaleLogic *logic.PresaleLogic, cfg *config.Config) *RefundWorkerJob {
	return &RefundWorkerJob{
		store:        s,
		presaleLogic: presaleLogic,
		config:       cfg,
	}
}

// GetName 获取任务名称
func (j *RefundWorkerJob) GetName() string {
	return "refund_worker"
}

// GetSchedule 获取调度配置
func (j *RefundWorkerJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *RefundWorkerJob) Execute() {
	presales, err := j.store.ListByStatus(model.PresaleStatusFailed, model.PresaleStatusRefunding)
	if err != nil {
		logger.Error("Failed to list presales pending refund: %v", err)
		return
	}
	if len(presales) == 0 {
		return
	}

	pool, err := ants.NewPool(refundWorkerPoolSize)
	if err != nil {
		logger.Error("Failed to create refund worker pool: %v", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	refunded := 0

	for _, presale := range presales {
		participants, err := j.store.GetActiveParticipants(presale.Id)
		if err != nil {
			logger.Error("Failed to fetch pending refunds for presale %s: %v", presale.Id, err)
			continue
		}

		for _, participant := range participants {
			presaleId := presale.Id
			wallet := participant.Address

			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				if _, err := j.presaleLogic.Refund(context.Background(), presaleId, wallet); err != nil {
					logger.Error("Auto refund failed for %s in presale %s: %v", wallet, presaleId, err)
					return
				}
				mu.Lock()
				refunded++
				mu.Unlock()
			}); err != nil {
				wg.Done()
				logger.Error("Failed to submit refund task: %v", err)
			}
		}
	}

	wg.Wait()
	if refunded > 0 {
		logger.Info("Refund worker completed. Refunded %d participants", refunded)
	}
}
