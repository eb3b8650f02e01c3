// Package eumetsat implements domain.Catalog against the EUMETSAT Data Store:
// OAuth2 client-credentials tokens, OpenSearch product search and product
// download by ID.
package eumetsat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultBaseURL is the public Data Store API gateway.
	DefaultBaseURL = "https://api.eumetsat.int"
	// DefaultCollection is the LI-2-LFL Lightning Flashes collection.
	DefaultCollection = "EO:EUM:DAT:0691"

	tokenPath    = "/token"
	searchPath   = "/data/search-products/1.0.0/os"
	downloadPath = "/data/download/1.0.0/collections/{collection}/products/{product}"

	defaultPageSize = 500
	// refreshMargin renews tokens slightly before they expire.
	refreshMargin = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Collection   string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the Data Store. It is safe for concurrent use.
type Client struct {
	http         *resty.Client
	collection   string
	clientID     string
	clientSecret string
	pageSize     int
	clock        clockwork.Clock
	logger       *slog.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewClient creates a Data Store client. Credentials are not checked until
// the first call.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "lightning-overlay-service").
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Client{
		http:         httpClient,
		collection:   opts.Collection,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		pageSize:     defaultPageSize,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
	}
}

// Connect obtains an access token, verifying the credentials.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

// ListProducts returns every product in the collection whose sensing period
// overlaps [start, end), ordered by sensing start.
func (c *Client) ListProducts(ctx context.Context, start, end time.Time) ([]domain.Product, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var products []*product
	for offset := 0; ; {
		var page searchResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(map[string]string{
				"format":  "json",
				"pi":      c.collection,
				"dtstart": start.UTC().Format(time.RFC3339),
				"dtend":   end.UTC().Format(time.RFC3339),
				"si":      strconv.Itoa(offset),
				"c":       strconv.Itoa(c.pageSize),
			}).
			SetResult(&page).
			Get(searchPath)
		if err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("search products: status %d: %s", resp.StatusCode(), resp.String())
		}

		for _, f := range page.Features {
			p := &product{client: c, id: f.ID}
			if s, e, ok := parseSensingPeriod(f.Properties.Date); ok {
				if !s.Before(end) || !e.After(start) {
					continue
				}
				p.start = s
			}
			products = append(products, p)
		}

		offset += len(page.Features)
		if len(page.Features) == 0 || offset >= page.TotalResults {
			break
		}
	}

	sort.SliceStable(products, func(i, j int) bool { return products[i].start.Before(products[j].start) })
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = p
	}
	c.logger.Debug("data store search complete", "collection", c.collection, "products", len(out))
	return out, nil
}

// accessToken returns a cached token, requesting a new one when absent or
// close to expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", &domain.ConfigError{Msg: "catalog credentials are not configured: set EUMDAC_CLIENT_ID and EUMDAC_CLIENT_SECRET"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.token != "" && now.Before(c.expiry.Add(-refreshMargin)) {
		return c.token, nil
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusBadRequest:
		return "", &domain.ConfigError{Msg: "catalog credentials were rejected"}
	case resp.IsError():
		return "", fmt.Errorf("request token: status %d: %s", resp.StatusCode(), resp.String())
	case tok.AccessToken == "":
		return "", errors.New("request token: empty access_token")
	}

	c.token = tok.AccessToken
	c.expiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("data store token issued", "expires_in", tok.ExpiresIn)
	return c.token, nil
}

// invalidateToken drops a token the server refused so the next call renews it.
func (c *Client) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// parseSensingPeriod parses an OpenSearch "start/end" date range.
func parseSensingPeriod(s string) (start, end time.Time, ok bool) {
	a, b, found := strings.Cut(s, "/")
	if !found {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339Nano, b)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Data Store API response types.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	TotalResults int             `json:"totalResults"`
	Features     []searchFeature `json:"features"`
}

type searchFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Date string `json:"date"` // "start/end", RFC 3339
	} `json:"properties"`
}
