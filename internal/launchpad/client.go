package launchpad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 发射平台API客户端。三个调用固定走同一份响应契约，
// 不做多形态字段猜测。
type Client struct {
	baseUrl string
	apiKey  string
	client  *http.Client
}

// NewClient 创建发射平台客户端
func NewClient(baseUrl, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseUrl: baseUrl,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// apiEnvelope 平台统一响应包
type apiEnvelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

// TokenMetadataRequest 代币元数据注册请求
type TokenMetadataRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	ImageUrl    string `json:"imageUrl"`
	Twitter     string `json:"twitter,omitempty"`
	Telegram    string `json:"telegram,omitempty"`
	Website     string `json:"website,omitempty"`
}

// TokenMetadataResult 代币元数据注册结果
type TokenMetadataResult struct {
	TokenMint   string `json:"tokenMint"`
	MetadataUri string `json:"tokenMetadata"`
}

// CreateTokenMetadata 注册代币元数据，返回mint地址与元数据句柄
func (c *Client) CreateTokenMetadata(ctx context.Context, req *TokenMetadataRequest) (*TokenMetadataResult, error) {
	var result TokenMetadataResult
	if err := c.post(ctx, "/token-launch/create-token-info", req, &result); err != nil {
		return nil, err
	}
	if result.TokenMint == "" {
		return nil, fmt.Errorf("launchpad returned empty token mint")
	}
	return &result, nil
}

// FeeShareConfigRequest 分润配置请求
type FeeShareConfigRequest struct {
	TokenMint     string   `json:"tokenMint"`
	Wallets       []string `json:"wallets"`
	Bps           []int    `json:"bps"`
	PartnerWallet string   `json:"partnerWallet,omitempty"`
}

// WithoutPartner 去掉可选合作方字段的降级请求
func (r *FeeShareConfigRequest) WithoutPartner() *FeeShareConfigRequest {
	reduced := *r
	reduced.PartnerWallet = ""
	return &reduced
}

// FeeShareConfigResult 分润配置结果。PendingTransactions为需要签名提交的
// base64交易，可能为空。
type FeeShareConfigResult struct {
	ConfigKey           string   `json:"configKey"`
	PendingTransactions []string `json:"transactions"`
}

// CreateFeeShareConfig 注册分润配置
func (c *Client) CreateFeeShareConfig(ctx context.Context, req *FeeShareConfigRequest) (*FeeShareConfigResult, error) {
	var result FeeShareConfigResult
	if err := c.post(ctx, "/token-launch/fee-share/create-config", req, &result); err != nil {
		return nil, err
	}
	if result.ConfigKey == "" {
		return nil, fmt.Errorf("launchpad returned empty config key")
	}
	return &result, nil
}

// LaunchTransactionRequest 发射交易构造请求
type LaunchTransactionRequest struct {
	TokenMint          string `json:"tokenMint"`
	MetadataUri        string `json:"tokenMetadata"`
	ConfigKey          string `json:"configKey"`
	Wallet             string `json:"wallet"`
	InitialBuyLamports int64  `json:"initialBuyLamports"`
}

type launchTransactionResult struct {
	Transaction string `json:"transaction"`
}

// CreateLaunchTransaction 构造发射交易（含初始买入），返回待签名base64交易
func (c *Client) CreateLaunchTransaction(ctx context.Context, req *LaunchTransactionRequest) (string, error) {
	var result launchTransactionResult
	if err := c.post(ctx, "/token-launch/create-launch-transaction", req, &result); err != nil {
		return "", err
	}
	if result.Transaction == "" {
		return "", fmt.Errorf("launchpad returned empty launch transaction")
	}
	return result.Transaction, nil
}

// post 发送请求并解析统一响应包
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("launchpad request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unexpected launchpad response (status %d): %s", resp.StatusCode, string(respBody))
	}

	if resp.StatusCode != http.StatusOK || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("launchpad rejected request: %s", msg)
	}

	if result != nil && envelope.Response != nil {
		if err := json.Unmarshal(envelope.Response, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
