// Package pollingplace looks up a voting division's polling-place address.
package pollingplace

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ward-stats/internal/division"
	"github.com/sells-group/ward-stats/internal/fetcher"
	"github.com/sells-group/ward-stats/internal/resilience"
)

var (
	// ErrNoPollingPlace is returned when the API answers with an empty feature list.
	ErrNoPollingPlace = eris.New("pollingplace: no polling place returned")

	// ErrNoDisplayAddress is returned when the first polling place carries
	// no display_address attribute.
	ErrNoDisplayAddress = eris.New("pollingplace: polling place has no display address")
)

// Client resolves polling-place addresses by division.
type Client interface {
	// Lookup returns the display address of the first polling place the
	// API reports for the division.
	Lookup(ctx context.Context, code division.Code) (string, error)
}

// Response is the polling-place API payload.
type Response struct {
	Features []struct {
		Attributes Attributes `json:"attributes"`
	} `json:"features"`
}

// Attributes holds the fields of a polling place used here.
type Attributes struct {
	DisplayAddress *string `json:"display_address"`
}

// Option configures the client.
type Option func(*client)

// WithFetcher sets the fetcher used for API requests.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *client) {
		c.fetcher = f
	}
}

// WithRetry sets the retry policy wrapped around each API request.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithRetryLogging logs each retried request at warn level.
func WithRetryLogging() Option {
	return func(c *client) {
		c.logRetries = true
	}
}

// WithCache enables the lookup cache.
func WithCache(cache *Cache) Option {
	return func(c *client) {
		c.cache = cache
	}
}

type client struct {
	baseURL string
	fetcher fetcher.Fetcher
	retry   resilience.RetryConfig
	cache   *Cache

	logRetries bool
}

// NewClient creates a polling-place Client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &client{
		baseURL: baseURL,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.logRetries {
		c.retry.OnRetry = resilience.RetryLogger("pollingplace", "lookup")
	}
	return c
}

func (c *client) Lookup(ctx context.Context, code division.Code) (string, error) {
	if c.cache != nil {
		addr, ok, err := c.cache.Get(ctx, code)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	params := url.Values{
		"ward":     {code.Ward()},
		"division": {code.Division()},
	}
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Response, error) {
		return fetcher.GetJSON[Response](ctx, c.fetcher, c.baseURL, params)
	})
	if err != nil {
		return "", eris.Wrapf(err, "pollingplace: lookup %s", code)
	}
	if len(resp.Features) == 0 {
		return "", eris.Wrapf(ErrNoPollingPlace, "division %s", code)
	}
	if resp.Features[0].Attributes.DisplayAddress == nil {
		return "", eris.Wrapf(ErrNoDisplayAddress, "division %s", code)
	}
	addr := *resp.Features[0].Attributes.DisplayAddress

	if c.cache != nil {
		if err := c.cache.Put(ctx, code, addr); err != nil {
			zap.L().Warn("pollingplace: cache store failed", zap.String("division", code.String()), zap.Error(err))
		}
	}
	return addr, nil
}
