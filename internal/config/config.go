package config

import (
	"time"

	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Launchpad LaunchpadConfig `mapstructure:"launchpad"`
	Launch    LaunchConfig    `mapstructure:"launch"`
	Task      TaskConfig      `mapstructure:"task"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig Solana链配置
type ChainConfig struct {
	RpcUrl                   string        `mapstructure:"rpc_url"`                    // RPC节点URL
	EscrowPrivateKey         string        `mapstructure:"escrow_private_key"`         // 托管钱包私钥 (base58)
	TaxWallet                string        `mapstructure:"tax_wallet"`                 // 退出税收款地址
	FeeWallet                string        `mapstructure:"fee_wallet"`                 // 创建费收款地址
	DepositToleranceLamports int64         `mapstructure:"deposit_tolerance_lamports"` // 存款金额校验容差
	VerifyRetries            int           `mapstructure:"verify_retries"`             // 交易未找到时的重试次数
	VerifyRetryWait          time.Duration `mapstructure:"verify_retry_wait"`          // 重试等待时间
	NetworkFeeLamports       int64         `mapstructure:"network_fee_lamports"`       // 预估网络手续费
}

// LaunchpadConfig 发射平台API配置
type LaunchpadConfig struct {
	BaseUrl       string        `mapstructure:"base_url"`       // API地址
	ApiKey        string        `mapstructure:"api_key"`        // API密钥
	PartnerWallet string        `mapstructure:"partner_wallet"` // 合作方归因钱包（可选）
	Timeout       time.Duration `mapstructure:"timeout"`        // 请求超时
}

// LaunchConfig 发射流程配置
type LaunchConfig struct {
	InitialBuyBps    int  `mapstructure:"initial_buy_bps"`    // 初始买入占募集总额的比例（bps）
	RequireConfigTxs bool `mapstructure:"require_config_txs"` // 分润配置交易全部失败时是否中止
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bags69")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "presale")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("chain.deposit_tolerance_lamports", 10000)
	viper.SetDefault("chain.verify_retries", 1)
	viper.SetDefault("chain.verify_retry_wait", "2s")
	viper.SetDefault("chain.network_fee_lamports", 5000)
	viper.SetDefault("launchpad.base_url", "https://public-api-v2.bags.fm/api/v1")
	viper.SetDefault("launchpad.timeout", "30s")
	viper.SetDefault("launch.initial_buy_bps", 5000)
	viper.SetDefault("launch.require_config_txs", false)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
