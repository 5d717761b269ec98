package logic

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFullPresale 直接在账本里构造一个满员预售
func seedFullPresale(t *testing.T, env *testEnv, amounts []int64) *model.PresaleModel {
	t.Helper()

	presale := &model.PresaleModel{
		CreatorAddress:     testAddress(t),
		TokenName:          "Test Token",
		TokenSymbol:        "TEST",
		MinAmount:          policy.DefaultMinAmountLamports,
		MaxAmount:          policy.DefaultMaxAmountLamports,
		TargetParticipants: len(amounts),
		DurationMinutes:    10,
		ExpiresAt:          time.Now().Add(10 * time.Minute),
		Status:             model.PresaleStatusActive,
	}
	require.NoError(t, env.store.Create(presale))

	for i, amount := range amounts {
		wallet := testAddress(t)
		_, err := env.store.AddParticipant(&model.ParticipantModel{
			PresaleId:      presale.Id,
			Address:        wallet,
			AmountLamports: amount,
			DepositTxHash:  fmt.Sprintf("%s-deposit-%d", presale.Id, i+1),
		})
		require.NoError(t, err)
		_, err = env.store.ConfirmParticipant(presale.Id, wallet)
		require.NoError(t, err)
	}

	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	require.True(t, got.IsFull())
	return got
}

func TestExecuteHappyPath(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.True(t, result.Launched)
	assert.Equal(t, env.api.mint, result.TokenMint)
	assert.Equal(t, env.api.configKey, result.ConfigKey)
	assert.NotEmpty(t, result.Signature)

	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusLaunched, got.Status)
	assert.Equal(t, env.api.mint, got.TokenMint)
	assert.Equal(t, env.api.configKey, got.FeeShareConfigKey)
	assert.Equal(t, result.Signature, got.LaunchTxSignature)
	require.NotNil(t, got.LaunchedAt)

	// 分润已计算并持久化到参与记录
	participants, err := env.store.GetActiveParticipants(presale.Id)
	require.NoError(t, err)
	sum := policy.CreatorFeeBps
	for _, p := range participants {
		assert.Positive(t, p.FeeShareBps)
		sum += p.FeeShareBps
	}
	assert.Equal(t, policy.TotalBps, sum)
}

func TestExecuteMetadataFailureLeavesActive(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.api.metadataErr = errors.New("launchpad down")

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.False(t, result.Launched)
	assert.Equal(t, StepMetadata, result.FailedStep)
	assert.NotEmpty(t, result.Error)

	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusActive, got.Status)
	assert.Empty(t, got.TokenMint)
}

func TestExecuteResumeSkipsCompletedSteps(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})

	// 上次失败前已取得mint与配置key
	require.NoError(t, env.store.UpdateStatus(presale.Id, model.PresaleStatusActive,
		map[string]interface{}{
			"token_mint":           "ExistingMint111111111111111111111111111111",
			"token_metadata_uri":   "https://metadata.example/existing",
			"fee_share_config_key": "ExistingConfig1111111111111111111111111111",
		}))
	presale, err := env.store.GetById(presale.Id)
	require.NoError(t, err)

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.True(t, result.Launched)
	assert.Equal(t, "ExistingMint111111111111111111111111111111", result.TokenMint)
	assert.Equal(t, "ExistingConfig1111111111111111111111111111", result.ConfigKey)
	assert.Zero(t, env.api.metadataCalls)
	assert.Empty(t, env.api.configCalls)
}

func TestExecuteRetriesConfigWithoutPartner(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.cfg.Launchpad.PartnerWallet = testAddress(t)
	env.api.rejectPartner = true

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)
	assert.True(t, result.Launched)

	// 带合作方归因被拒后降级重试一次
	require.Len(t, env.api.configCalls, 2)
	assert.NotEmpty(t, env.api.configCalls[0].PartnerWallet)
	assert.Empty(t, env.api.configCalls[1].PartnerWallet)
}

func TestExecuteConfigFailureLeavesActive(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.api.configErr = errors.New("config rejected")

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.False(t, result.Launched)
	assert.Equal(t, StepConfig, result.FailedStep)

	// mint已持久化，重试从配置步骤继续
	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusActive, got.Status)
	assert.Equal(t, env.api.mint, got.TokenMint)
	assert.Empty(t, got.FeeShareConfigKey)
}

func TestExecuteConfigTransactionsSubmitted(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.api.pendingTxs = []string{"dHgtMQ==", "dHgtMg=="}

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.True(t, result.Launched)
	assert.Equal(t, 2, result.ConfigTxsSubmitted)
	assert.Equal(t, 2, result.ConfigTxsTotal)
	// 2笔配置交易 + 1笔发射交易
	assert.Len(t, env.wallet.submitted, 3)
}

func TestExecuteAllConfigTxsFailedRespectsFlag(t *testing.T) {
	env := newTestEnv(t)
	env.api.pendingTxs = []string{"dHgtMQ=="}
	env.wallet.submitErr = errors.New("rpc unavailable")

	t.Run("strict mode aborts", func(t *testing.T) {
		presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
		env.cfg.Launch.RequireConfigTxs = true

		result, err := env.launch.Execute(context.Background(), presale)
		require.NoError(t, err)
		assert.False(t, result.Launched)
		assert.Equal(t, StepConfig, result.FailedStep)
	})

	t.Run("lenient mode proceeds to launch tx", func(t *testing.T) {
		presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
		env.cfg.Launch.RequireConfigTxs = false

		result, err := env.launch.Execute(context.Background(), presale)
		require.NoError(t, err)
		// 发射交易提交同样会失败，但失败环节已走到发射步骤
		assert.False(t, result.Launched)
		assert.Equal(t, StepLaunchTx, result.FailedStep)
		assert.Equal(t, 0, result.ConfigTxsSubmitted)
	})
}

func TestExecuteInsufficientEscrowBalance(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.verifier.balance = 1000

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.False(t, result.Launched)
	assert.Equal(t, StepLaunchTx, result.FailedStep)
	assert.Zero(t, env.api.launchCalls)

	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PresaleStatusActive, got.Status)
}

func TestExecuteFatalErrorNamesStep(t *testing.T) {
	env := newTestEnv(t)

	// 人数口径满员但没有任何参与记录，分润计算必然报错
	presale := &model.PresaleModel{
		CreatorAddress:     testAddress(t),
		TokenName:          "Test Token",
		TokenSymbol:        "TEST",
		MinAmount:          policy.DefaultMinAmountLamports,
		MaxAmount:          policy.DefaultMaxAmountLamports,
		TargetParticipants: 1,
		DurationMinutes:    10,
		ExpiresAt:          time.Now().Add(10 * time.Minute),
		Status:             model.PresaleStatusActive,
		ParticipantCount:   1,
	}
	require.NoError(t, env.store.Create(presale))

	result, err := env.launch.Execute(context.Background(), presale)
	require.Error(t, err)

	// 内部错误同样携带失败环节，调用方无需自行推断
	require.NotNil(t, result)
	assert.Equal(t, StepFeeShares, result.FailedStep)
	assert.NotEmpty(t, result.Error)
	assert.False(t, result.Launched)
}

func TestExecuteLaunchTxBuildFailure(t *testing.T) {
	env := newTestEnv(t)
	presale := seedFullPresale(t, env, []int64{50_000_000, 70_000_000})
	env.api.launchErr = errors.New("build failed")

	result, err := env.launch.Execute(context.Background(), presale)
	require.NoError(t, err)

	assert.False(t, result.Launched)
	assert.Equal(t, StepLaunchTx, result.FailedStep)

	// mint与配置key均已保留，重试只剩发射交易
	got, err := env.store.GetById(presale.Id)
	require.NoError(t, err)
	assert.Equal(t, env.api.mint, got.TokenMint)
	assert.Equal(t, env.api.configKey, got.FeeShareConfigKey)
}
