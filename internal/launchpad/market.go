package launchpad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MarketData 已发射代币的行情快照。仅用于展示，尽力而为。
type MarketData struct {
	TokenMint    string  `json:"tokenMint"`
	PriceUsd     float64 `json:"priceUsd"`
	LiquidityUsd float64 `json:"liquidityUsd"`
	MarketCapUsd float64 `json:"marketCapUsd"`
	HolderCount  int64   `json:"holderCount"`
}

// GetMarketData 查询代币行情。失败由调用方降级处理，绝不阻塞核心流程。
func (c *Client) GetMarketData(ctx context.Context, tokenMint string) (*MarketData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/token/%s/market", c.baseUrl, tokenMint), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected market data response: %s", string(respBody))
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return nil, fmt.Errorf("market data unavailable for %s", tokenMint)
	}

	var data MarketData
	if err := json.Unmarshal(envelope.Response, &data); err != nil {
		return nil, fmt.Errorf("unmarshal market data: %w", err)
	}
	data.TokenMint = tokenMint
	return &data, nil
}
