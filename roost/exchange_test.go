package roost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookupConfig() *LookupConfig {
	return DefaultConfig().Lookup
}

func TestExchangeClient_Rates(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(
					[]byte(`{
						"result": "success",
						"rates": {
							"KRW": 1,
							"USD": 0.00072,
							"EUR": 0.00066,
							"JPY": 0.1057,
							"XYZ": 123.0
						}
					}`),
				)
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.ExchangeURL = srv.URL
	client := newExchangeClient(cfg, srv.Client(), testLogger(t))

	rates, err := client.Rates(context.Background())
	require.NoError(t, err)

	// only supported currencies present in the response, sorted by code
	require.Len(t, rates, 3)
	assert.Equal(t, "EUR", rates[0].Currency)
	assert.Equal(t, "JPY", rates[1].Currency)
	assert.Equal(t, "USD", rates[2].Currency)

	// KRW value is the inverse of the per-KRW rate
	assert.InDelta(t, 1/0.00072, rates[2].KRW, 0.0001)
	assert.InDelta(t, 1/0.1057, rates[1].KRW, 0.0001)
}

func TestExchangeClient_NoRates(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"result": "success", "rates": {}}`))
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.ExchangeURL = srv.URL
	client := newExchangeClient(cfg, srv.Client(), testLogger(t))

	_, err := client.Rates(context.Background())
	require.Error(t, err)
}

func TestExchangeClient_SkipsZeroRates(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(
					[]byte(`{"result": "success", "rates": {"USD": 0, "EUR": 0.00066}}`),
				)
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.ExchangeURL = srv.URL
	client := newExchangeClient(cfg, srv.Client(), testLogger(t))

	rates, err := client.Rates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "EUR", rates[0].Currency)
}
