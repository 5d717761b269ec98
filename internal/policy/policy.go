package policy

// 预售静态规则。纯函数，无状态，可并发调用。

const (
	// LamportsPerSol SOL与lamports换算
	LamportsPerSol = 1_000_000_000

	// MinParticipants 最小目标参与人数
	MinParticipants = 1
	// MaxParticipants 最大目标参与人数
	MaxParticipants = 68

	// CreatorFeeBps 创建者固定分润（5%）
	CreatorFeeBps = 500
	// ParticipantFeeBps 参与者分润池（95%）
	ParticipantFeeBps = 9500
	// TotalBps 分润总额必须恰好等于该值
	TotalBps = 10000

	// WithdrawTaxBps 主动退出税率（5%）
	WithdrawTaxBps = 500

	// MaxSymbolLength 代币符号最大长度
	MaxSymbolLength = 10

	// DefaultMinAmountLamports 默认单钱包最小存款（0.01 SOL）
	DefaultMinAmountLamports = LamportsPerSol / 100
	// DefaultMaxAmountLamports 默认单钱包最大存款（1 SOL）
	DefaultMaxAmountLamports = LamportsPerSol

	// LaunchFeeLamports 创建预售的不可退还费用（0.05 SOL）
	LaunchFeeLamports = LamportsPerSol / 20
)

// AllowedDurations 允许的预售时长（分钟）
var AllowedDurations = []int{10, 20, 30}

// IsValidDuration 校验预售时长是否在白名单内
func IsValidDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// IsValidTargetParticipants 校验目标参与人数
func IsValidTargetParticipants(target int) bool {
	return target >= MinParticipants && target <= MaxParticipants
}

// WithdrawalTax 计算退出税。tax + returned 恒等于 amount。
func WithdrawalTax(amount int64) (tax, returned int64) {
	tax = amount * WithdrawTaxBps / TotalBps
	returned = amount - tax
	return tax, returned
}

// ParticipantShare 按出资比例计算参与者分润（bps），向下取整避免超分。
func ParticipantShare(contribution, poolTotal int64) int {
	if poolTotal <= 0 {
		return 0
	}
	return int(contribution * ParticipantFeeBps / poolTotal)
}
