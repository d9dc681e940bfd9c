package roost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteamClient_FindGame(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(
		"/storesearch", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "factorio", r.URL.Query().Get("term"))
			_, _ = w.Write(
				[]byte(`{
					"items": [
						{"id": 427520, "name": "Factorio"},
						{"id": 1969090, "name": "Factorio: Space Age"},
						{"id": 2, "name": "Other 1"},
						{"id": 3, "name": "Other 2"},
						{"id": 4, "name": "Other 3"},
						{"id": 5, "name": "Other 4"},
						{"id": 6, "name": "Other 5"}
					]
				}`),
			)
		},
	)
	mux.HandleFunc(
		"/players", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "427520", r.URL.Query().Get("appid"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			_, _ = w.Write(
				[]byte(`{"response": {"player_count": 25000, "result": 1}}`),
			)
		},
	)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.SteamKey = "test-key"
	cfg.SteamSearchURL = srv.URL + "/storesearch"
	cfg.SteamPlayerCountURL = srv.URL + "/players"
	client := newSteamClient(cfg, srv.Client(), testLogger(t))

	best, alternates, err := client.FindGame(context.Background(), "factorio")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 427520, best.AppID)
	assert.Equal(t, "Factorio", best.Name)
	assert.Equal(t, 25000, best.PlayerCount)

	require.Len(t, alternates, steamMaxAlternates)
	assert.Equal(t, "Factorio: Space Age", alternates[0].Name)
	assert.Zero(t, alternates[0].PlayerCount)
}

func TestSteamClient_FindGameNoResults(t *testing.T) {
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"items": []}`))
			},
		),
	)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.SteamSearchURL = srv.URL
	cfg.SteamPlayerCountURL = srv.URL
	client := newSteamClient(cfg, srv.Client(), testLogger(t))

	_, _, err := client.FindGame(context.Background(), "no such game")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSteamClient_FindGamePlayerCountBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(
		"/storesearch", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(
				[]byte(`{"items": [{"id": 10, "name": "Counter-Strike"}]}`),
			)
		},
	)
	mux.HandleFunc(
		"/players", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testLookupConfig()
	cfg.SteamSearchURL = srv.URL + "/storesearch"
	cfg.SteamPlayerCountURL = srv.URL + "/players"
	client := newSteamClient(cfg, srv.Client(), testLogger(t))

	// player count failure doesn't fail the search
	best, _, err := client.FindGame(context.Background(), "counter-strike")
	require.NoError(t, err)
	assert.Equal(t, "Counter-Strike", best.Name)
	assert.Zero(t, best.PlayerCount)
}

func TestSteamClient_ShortQueryRejected(t *testing.T) {
	cfg := testLookupConfig()
	client := newSteamClient(cfg, http.DefaultClient, testLogger(t))

	_, _, err := client.FindGame(context.Background(), " x ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSteamGame_URLs(t *testing.T) {
	game := SteamGame{AppID: 427520, Name: "Factorio"}
	assert.Equal(
		t,
		"https://store.steampowered.com/app/427520",
		game.StoreURL(),
	)
	assert.Contains(t, game.HeaderImageURL(), "427520/header.jpg")
}
