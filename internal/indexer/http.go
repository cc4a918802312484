package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/anoma/kassandra-service/internal/masp"
)

// Config holds HTTPClient configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient is a net/http-based Indexer implementation: single-shot
// requests with no in-band retry, consistent with spec.md §7's "the
// steady-state protocol never retries in-band" rule (retries belong to
// the fetch pipeline's task-respawn logic, not this client).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Indexer = (*HTTPClient)(nil)

// NewHTTPClient constructs an HTTPClient against cfg.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("indexer: base url required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type heightResponse struct {
	Height uint64 `json:"height"`
}

// LastBlockHeight calls GET {baseURL}/height.
func (c *HTTPClient) LastBlockHeight(ctx context.Context) (uint64, error) {
	var out heightResponse
	if err := c.getJSON(ctx, c.baseURL+"/height", &out); err != nil {
		return 0, fmt.Errorf("indexer: last block height: %w", err)
	}
	return out.Height, nil
}

type transferEntry struct {
	Height uint64 `json:"height"`
	Tx     uint32 `json:"tx"`
	Data   []byte `json:"data"`
	Flag   []byte `json:"flag,omitempty"`
}

// FetchShieldedTransfers calls GET {baseURL}/transfers?from=X&to=Y.
func (c *HTTPClient) FetchShieldedTransfers(ctx context.Context, from, to uint64) ([]TxEntry, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatUint(from, 10))
	q.Set("to", strconv.FormatUint(to, 10))

	var entries []transferEntry
	if err := c.getJSON(ctx, c.baseURL+"/transfers?"+q.Encode(), &entries); err != nil {
		return nil, fmt.Errorf("indexer: fetch shielded transfers [%d,%d]: %w", from, to, err)
	}

	out := make([]TxEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TxEntry{
			Index: masp.Index{Height: e.Height, Tx: e.Tx},
			Data:  e.Data,
			Flag:  e.Flag,
		})
	}
	return out, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
