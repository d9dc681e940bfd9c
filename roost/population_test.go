package roost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationClient_Country(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/south%20korea", r.URL.EscapedPath())
				_, _ = w.Write(
					[]byte(`[
						{
							"name": {
								"common": "South Korea",
								"official": "Republic of Korea"
							},
							"population": 51780579,
							"capital": ["Seoul"],
							"region": "Asia",
							"flags": {"png": "https://example.test/kr.png"}
						}
					]`),
				)
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.PopulationURL = srv.URL
	client := newPopulationClient(cfg, srv.Client(), testLogger(t))

	info, err := client.Country(context.Background(), "south korea")
	require.NoError(t, err)
	assert.Equal(t, "South Korea", info.Name)
	assert.Equal(t, "Republic of Korea", info.Official)
	assert.Equal(t, int64(51780579), info.Population)
	assert.Equal(t, "Seoul", info.Capital)
	assert.Equal(t, "Asia", info.Region)
	assert.Equal(t, "https://example.test/kr.png", info.FlagURL)
}

func TestPopulationClient_SanitizesQuery(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.EscapedPath()
				_, _ = w.Write(
					[]byte(`[{"name": {"common": "Japan"}, "population": 1}]`),
				)
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.PopulationURL = srv.URL
	client := newPopulationClient(cfg, srv.Client(), testLogger(t))

	_, err := client.Country(context.Background(), "  ja<p>an!  ")
	require.NoError(t, err)
	assert.Equal(t, "/japan", gotPath)
}

func TestPopulationClient_ShortQueryRejected(t *testing.T) {
	cfg := testLookupConfig()
	cfg.PopulationURL = "http://127.0.0.1:1"
	client := newPopulationClient(cfg, http.DefaultClient, testLogger(t))

	_, err := client.Country(context.Background(), "!!")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPopulationClient_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[]`))
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.PopulationURL = srv.URL
	client := newPopulationClient(cfg, srv.Client(), testLogger(t))

	_, err := client.Country(context.Background(), "atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPopulationClient_UnknownCountryNotFound(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				// restcountries answers 404 for an unknown country
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status": 404, "message": "Not Found"}`))
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.PopulationURL = srv.URL
	client := newPopulationClient(cfg, srv.Client(), testLogger(t))

	_, err := client.Country(context.Background(), "wakanda")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeCountryName(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"South Korea", "South Korea"},
		{"  France  ", "France"},
		{"U.S.A.", "USA"},
		{"<script>alert</script>", "scriptalertscript"},
		{"", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, sanitizeCountryName(tc.input))
	}
}
