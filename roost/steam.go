package roost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// steamMaxAlternates caps how many alternate matches /steam lists.
const steamMaxAlternates = 4

// SteamGame is a store search result, optionally annotated with its
// current player count.
type SteamGame struct {
	AppID       int    `json:"appid"`
	Name        string `json:"name"`
	PlayerCount int    `json:"player_count"`
}

// StoreURL is the game's steam store page.
func (g SteamGame) StoreURL() string {
	return fmt.Sprintf("https://store.steampowered.com/app/%d", g.AppID)
}

// HeaderImageURL is the game's store header image.
func (g SteamGame) HeaderImageURL() string {
	return fmt.Sprintf(
		"https://cdn.cloudflare.steamstatic.com/steam/apps/%d/header.jpg",
		g.AppID,
	)
}

// SteamClient searches the steam store and fetches current player counts.
// Search and player count lookups are rate limited independently.
type SteamClient struct {
	search  lookupClient
	players lookupClient

	apiKey         string
	searchURL      string
	playerCountURL string
}

func newSteamClient(
	config *LookupConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *SteamClient {
	return &SteamClient{
		search: newLookupClient(
			httpClient,
			config.SteamSearchPerMinute,
			config.MaxRetries,
			config.Timeout,
			logger.With(loggerNameKey, "steam_search"),
		),
		players: newLookupClient(
			httpClient,
			config.SteamPlayersPerMinute,
			config.MaxRetries,
			config.Timeout,
			logger.With(loggerNameKey, "steam_players"),
		),
		apiKey:         config.SteamKey,
		searchURL:      config.SteamSearchURL,
		playerCountURL: config.SteamPlayerCountURL,
	}
}

type steamSearchResponse struct {
	Items []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"items"`
}

type steamPlayerCountResponse struct {
	Response struct {
		PlayerCount int `json:"player_count"`
		Result      int `json:"result"`
	} `json:"response"`
}

// PlayerCount returns the current number of players for the given app ID.
func (c *SteamClient) PlayerCount(ctx context.Context, appID int) (int, error) {
	params := url.Values{}
	params.Set("appid", strconv.Itoa(appID))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	var resp steamPlayerCountResponse
	if err := c.players.getJSON(ctx, c.playerCountURL, params, &resp); err != nil {
		return 0, err
	}
	return resp.Response.PlayerCount, nil
}

// FindGame searches the steam store for the given name, returning the best
// match (with its player count populated, when available) and up to
// steamMaxAlternates other matches.
func (c *SteamClient) FindGame(ctx context.Context, name string) (
	*SteamGame,
	[]SteamGame,
	error,
) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return nil, nil, fmt.Errorf(
			"%w: game name must be at least 2 characters",
			ErrValidation,
		)
	}

	params := url.Values{}
	params.Set("term", name)
	params.Set("l", "english")
	params.Set("category1", "998") // games only
	params.Set("cc", "US")

	var resp steamSearchResponse
	if err := c.search.getJSON(ctx, c.searchURL, params, &resp); err != nil {
		if errors.Is(err, errLookupNoResult) {
			return nil, nil, fmt.Errorf("%w: game %q", ErrNotFound, name)
		}
		return nil, nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil, fmt.Errorf("%w: game %q", ErrNotFound, name)
	}

	best := &SteamGame{
		AppID: resp.Items[0].ID,
		Name:  resp.Items[0].Name,
	}
	if count, err := c.PlayerCount(ctx, best.AppID); err != nil {
		c.players.logger.Warn(
			"could not get player count",
			"appid", best.AppID,
			"name", best.Name,
		)
	} else {
		best.PlayerCount = count
	}

	var alternates []SteamGame
	for _, item := range resp.Items[1:] {
		if len(alternates) >= steamMaxAlternates {
			break
		}
		alternates = append(
			alternates,
			SteamGame{AppID: item.ID, Name: item.Name},
		)
	}
	return best, alternates, nil
}
