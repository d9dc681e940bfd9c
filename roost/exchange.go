package roost

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
)

// supportedCurrencies is the fixed list shown by /exchange.
var supportedCurrencies = []string{
	"USD",
	"EUR",
	"JPY",
	"CNY",
	"GBP",
	"AUD",
	"CAD",
	"HKD",
	"SGD",
	"TWD",
}

// ExchangeClient fetches KRW exchange rates from open.er-api.com.
type ExchangeClient struct {
	lookupClient
	url string
}

func newExchangeClient(
	config *LookupConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *ExchangeClient {
	return &ExchangeClient{
		lookupClient: newLookupClient(
			httpClient,
			config.ExchangeRatePerMinute,
			config.MaxRetries,
			config.Timeout,
			logger.With(loggerNameKey, "exchange"),
		),
		url: config.ExchangeURL,
	}
}

type exchangeResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// Rates returns how many KRW one unit of each supported currency is worth,
// sorted by currency code for deterministic display. Currencies missing
// from the upstream response (or with a zero rate) are skipped.
func (c *ExchangeClient) Rates(ctx context.Context) ([]ExchangeRate, error) {
	var resp exchangeResponse
	if err := c.getJSON(ctx, c.url, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("exchange API returned no rates")
	}

	rates := make([]ExchangeRate, 0, len(supportedCurrencies))
	for _, currency := range supportedCurrencies {
		perKRW, ok := resp.Rates[currency]
		if !ok || perKRW == 0 {
			c.logger.Warn("missing or zero rate", "currency", currency)
			continue
		}
		rates = append(rates, ExchangeRate{Currency: currency, KRW: 1 / perKRW})
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("no valid exchange rates found")
	}
	sort.Slice(
		rates, func(i, j int) bool {
			return rates[i].Currency < rates[j].Currency
		},
	)
	return rates, nil
}

// ExchangeRate is the KRW value of one unit of a foreign currency.
type ExchangeRate struct {
	Currency string  `json:"currency"`
	KRW      float64 `json:"krw"`
}
