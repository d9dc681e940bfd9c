package roost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CountryInfo is the subset of restcountries.com data shown by /population.
type CountryInfo struct {
	Name       string `json:"name"`
	Official   string `json:"official"`
	Population int64  `json:"population"`
	Capital    string `json:"capital"`
	Region     string `json:"region"`
	FlagURL    string `json:"flag_url"`
}

// PopulationClient looks up country data from restcountries.com.
type PopulationClient struct {
	lookupClient
	baseURL string
}

func newPopulationClient(
	config *LookupConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *PopulationClient {
	return &PopulationClient{
		lookupClient: newLookupClient(
			httpClient,
			config.PopulationRatePerMinute,
			config.MaxRetries,
			config.Timeout,
			logger.With(loggerNameKey, "population"),
		),
		baseURL: strings.TrimSuffix(config.PopulationURL, "/"),
	}
}

type restCountry struct {
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	Population int64    `json:"population"`
	Capital    []string `json:"capital"`
	Region     string   `json:"region"`
	Flags      struct {
		PNG string `json:"png"`
	} `json:"flags"`
}

// Country returns info for the best match on the given country name.
// The name is sanitized to letters, digits and spaces before the lookup.
func (c *PopulationClient) Country(ctx context.Context, name string) (CountryInfo, error) {
	var info CountryInfo
	name = sanitizeCountryName(name)
	if len(name) < 2 {
		return info, fmt.Errorf(
			"%w: country name must be at least 2 characters",
			ErrValidation,
		)
	}

	var countries []restCountry
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(name))
	if err := c.getJSON(ctx, endpoint, nil, &countries); err != nil {
		// restcountries answers 404 for an unknown country
		if errors.Is(err, errLookupNoResult) {
			return info, fmt.Errorf("%w: country %q", ErrNotFound, name)
		}
		return info, err
	}
	if len(countries) == 0 {
		return info, fmt.Errorf("%w: country %q", ErrNotFound, name)
	}

	country := countries[0]
	info = CountryInfo{
		Name:       country.Name.Common,
		Official:   country.Name.Official,
		Population: country.Population,
		Region:     country.Region,
		FlagURL:    country.Flags.PNG,
	}
	if len(country.Capital) > 0 {
		info.Capital = country.Capital[0]
	}
	return info, nil
}

// sanitizeCountryName trims the query to 50 characters of letters, digits
// and spaces.
func sanitizeCountryName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 50 {
		name = name[:50]
	}
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9', c == ' ':
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}
