// Package search finds the pages competing for a query.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultEndpoint = "https://www.googleapis.com/customsearch/v1"
	// maxResultsPerCall is the page size limit of the Custom Search JSON API
	maxResultsPerCall = 10
)

// Result is one organic search result
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// GoogleClient queries the Google Programmable Search (Custom Search JSON) API
type GoogleClient struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewGoogleClient creates a client. An empty apiKey or engineID leaves the client unconfigured.
func NewGoogleClient(apiKey, engineID string, timeout time.Duration, logger zerolog.Logger) *GoogleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleClient{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// WithEndpoint overrides the API endpoint
func (c *GoogleClient) WithEndpoint(endpoint string) *GoogleClient {
	c.endpoint = endpoint
	return c
}

// Configured reports whether credentials are present
func (c *GoogleClient) Configured() bool {
	return c.apiKey != "" && c.engineID != ""
}

type googleResponse struct {
	Items []Result `json:"items"`
}

// Search returns up to numResults results for query. An unconfigured client
// or a failed call yields an empty list; the error is only logged.
func (c *GoogleClient) Search(ctx context.Context, query string, numResults int) []Result {
	results := make([]Result, 0)
	if !c.Configured() || query == "" || numResults <= 0 {
		return results
	}
	if numResults > maxResultsPerCall {
		numResults = maxResultsPerCall
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(numResults))

	log := c.logger.With().Str("query", query).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build search request")
		return results
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("search request failed")
		return results
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("search returned non-200 status")
		return results
	}

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Warn().Err(fmt.Errorf("failed to decode search response: %w", err)).Msg("search response unreadable")
		return results
	}

	for _, item := range decoded.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, item)
		if len(results) == numResults {
			break
		}
	}
	return results
}
