package eumetsat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// product is one Data Store product handle.
type product struct {
	client *Client
	id     string
	start  time.Time
}

func (p *product) Name() string { return p.id }

// Open starts the download. The caller closes the returned body.
func (p *product) Open(ctx context.Context) (io.ReadCloser, error) {
	c := p.client
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(map[string]string{
			"collection": c.collection,
			"product":    p.id,
		}).
		SetDoNotParseResponse(true).
		Get(downloadPath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", p.id, err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		_ = body.Close()
		if resp.StatusCode() == http.StatusUnauthorized {
			c.invalidateToken(token)
		}
		return nil, fmt.Errorf("download %s: status %d: %s", p.id, resp.StatusCode(), msg)
	}
	return body, nil
}
