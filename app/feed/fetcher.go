package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const fetchTimeout = 30 * time.Second

// Fetcher downloads a feed and hands it to the parser. A non-2xx
// response or an unparsable payload is an error naming the feed URL.
type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
	}
}

// Run fetches and normalizes the feed at url.
func (f *Fetcher) Run(ctx context.Context, url string) (*Metadata, []Candidate, error) {
	data, err := f.fetch(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	metadata, candidates, err := f.parser.Run(data)
	if err != nil {
		return nil, nil, fmt.Errorf("feed %s: %w", url, err)
	}

	return metadata, candidates, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed %s: failed to create request: %w", url, err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed %s: failed to fetch: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed %s: HTTP error: %d %s", url, resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: failed to read response body: %w", url, err)
	}

	return data, nil
}
