package logic

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/fees"
	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/model"
	"github.com/BAGS69FUN/BAGS69/internal/policy"
	"github.com/BAGS69FUN/BAGS69/internal/solana"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"github.com/glebarez/sqlite"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testAddress 生成合法的base58 ed25519地址
func testAddress(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

// fakeVerifier 可编程的链上校验器
type fakeVerifier struct {
	verifyErr  error
	balance    int64
	balanceErr error
}

func (f *fakeVerifier) VerifyTransfer(ctx context.Context, signature, recipient string, expected int64) error {
	return f.verifyErr
}

func (f *fakeVerifier) Balance(ctx context.Context, address string) (int64, error) {
	return f.balance, f.balanceErr
}

// fakeWallet 可编程的托管钱包
type fakeWallet struct {
	address     string
	transfers   [][]solana.TransferInstruction
	transferErr error
	submitted   []string
	submitErr   error
	sigCounter  int
}

func (f *fakeWallet) Address() string {
	return f.address
}

func (f *fakeWallet) Transfer(ctx context.Context, transfers []solana.TransferInstruction) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	f.transfers = append(f.transfers, transfers)
	f.sigCounter++
	return fmt.Sprintf("transfer-sig-%d", f.sigCounter), nil
}

func (f *fakeWallet) SignAndSubmit(ctx context.Context, txBase64 string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, txBase64)
	f.sigCounter++
	return fmt.Sprintf("submit-sig-%d", f.sigCounter), nil
}

// fakeLaunchpad 可编程的发射平台
type fakeLaunchpad struct {
	mint          string
	metadataErr   error
	metadataCalls int

	configKey     string
	configErr     error
	rejectPartner bool
	pendingTxs    []string
	configCalls   []*launchpad.FeeShareConfigRequest

	launchTx    string
	launchErr   error
	launchCalls int
}

func newFakeLaunchpad() *fakeLaunchpad {
	return &fakeLaunchpad{
		mint:      "FakeMint1111111111111111111111111111111111",
		configKey: "FakeConfigKey11111111111111111111111111111",
		launchTx:  "bGF1bmNoLXR4",
	}
}

func (f *fakeLaunchpad) CreateTokenMetadata(ctx context.Context, req *launchpad.TokenMetadataRequest) (*launchpad.TokenMetadataResult, error) {
	f.metadataCalls++
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return &launchpad.TokenMetadataResult{
		TokenMint:   f.mint,
		MetadataUri: "https://metadata.example/" + req.Symbol,
	}, nil
}

func (f *fakeLaunchpad) CreateFeeShareConfig(ctx context.Context, req *launchpad.FeeShareConfigRequest) (*launchpad.FeeShareConfigResult, error) {
	f.configCalls = append(f.configCalls, req)
	if f.rejectPartner && req.PartnerWallet != "" {
		return nil, fmt.Errorf("launchpad rejected request: unknown partner")
	}
	if f.configErr != nil {
		return nil, f.configErr
	}
	return &launchpad.FeeShareConfigResult{
		ConfigKey:           f.configKey,
		PendingTransactions: f.pendingTxs,
	}, nil
}

func (f *fakeLaunchpad) CreateLaunchTransaction(ctx context.Context, req *launchpad.LaunchTransactionRequest) (string, error) {
	f.launchCalls++
	if f.launchErr != nil {
		return "", f.launchErr
	}
	return f.launchTx, nil
}

// fakeMarket 可编程的行情源
type fakeMarket struct {
	data *launchpad.MarketData
	err  error
}

func (f *fakeMarket) GetMarketData(ctx context.Context, tokenMint string) (*launchpad.MarketData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// testEnv 测试环境，持有全部可编程依赖
type testEnv struct {
	store    *store.Store
	verifier *fakeVerifier
	wallet   *fakeWallet
	api      *fakeLaunchpad
	market   *fakeMarket
	cfg      *config.Config
	logic    *PresaleLogic
	launch   *LaunchLogic
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.PresaleModel{}, &model.ParticipantModel{}))

	env := &testEnv{
		store:    store.New(db),
		verifier: &fakeVerifier{balance: 100 * policy.LamportsPerSol},
		wallet:   &fakeWallet{address: testAddress(t)},
		api:      newFakeLaunchpad(),
		market:   &fakeMarket{},
		cfg: &config.Config{
			Chain: config.ChainConfig{
				TaxWallet:          testAddress(t),
				FeeWallet:          testAddress(t),
				NetworkFeeLamports: 5000,
			},
			Launch: config.LaunchConfig{InitialBuyBps: 5000},
		},
	}

	engine := fees.NewEngine(env.store)
	env.launch = NewLaunchLogic(env.store, engine, env.api, env.wallet, env.verifier, env.cfg)
	env.logic = NewPresaleLogic(env.store, env.verifier, env.wallet, env.launch, env.market, env.cfg)
	return env
}

// createActivePresale 建立一个进行中的预售
func (env *testEnv) createActivePresale(t *testing.T, target int) *model.PresaleModel {
	t.Helper()
	presale, err := env.logic.Create(context.Background(), &CreatePresaleRequest{
		CreatorAddress:     testAddress(t),
		LaunchFeeTxHash:    fmt.Sprintf("fee-tx-%s", testAddress(t)),
		TokenName:          "Test Token",
		TokenSymbol:        "TEST",
		TargetParticipants: target,
		DurationMinutes:    10,
	})
	require.NoError(t, err)
	return presale
}

// joinWallet 以新钱包加入预售
func (env *testEnv) joinWallet(t *testing.T, presaleId string, amount int64) (string, *JoinResult) {
	t.Helper()
	wallet := testAddress(t)
	result, err := env.logic.Join(context.Background(), presaleId, wallet, amount,
		fmt.Sprintf("deposit-%s", wallet))
	require.NoError(t, err)
	return wallet, result
}

// expirePresale 把预售截止时间拨到过去
func (env *testEnv) expirePresale(t *testing.T, presaleId string) {
	t.Helper()
	require.NoError(t, env.store.UpdateStatus(presaleId, model.PresaleStatusActive,
		map[string]interface{}{"expires_at": time.Now().Add(-time.Minute)}))
}
