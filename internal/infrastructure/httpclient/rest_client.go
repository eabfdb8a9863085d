package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"wallet_indexer/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// RESTClient issues GET requests over fasthttp and maps failures onto the
// indexer error taxonomy.
type RESTClient struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewRESTClient returns a client whose requests never outlive timeout.
func NewRESTClient(timeout time.Duration) *RESTClient {
	return &RESTClient{
		client: &fasthttp.Client{
			Name:                "wallet-indexer",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// Get performs the request and returns a copy of the body of a 2xx response.
// chain and op only label the returned error.
func (c *RESTClient) Get(ctx context.Context, chain entity.Chain, op, url string, headers map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, entity.ClassifyTransportError(chain, op, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, classifyTransport(chain, op, fmt.Errorf("GET %s: %w", url, err))
	}

	body := append([]byte(nil), resp.Body()...)
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		statusErr := &StatusError{URL: url, StatusCode: status, Body: truncate(string(body))}
		if status == fasthttp.StatusTooManyRequests {
			return nil, entity.NewSyncError(entity.KindRateLimit, chain, op, statusErr)
		}
		return nil, entity.NewSyncError(entity.KindNetwork, chain, op, statusErr)
	}
	return body, nil
}

// GetJSON performs Get and decodes the body into out.
func (c *RESTClient) GetJSON(ctx context.Context, chain entity.Chain, op, url string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, chain, op, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return entity.NewSyncError(entity.KindParse, chain, op, fmt.Errorf("decode response of %s: %w", url, err))
	}
	return nil
}

func classifyTransport(chain entity.Chain, op string, err error) error {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return entity.NewSyncError(entity.KindTimeout, chain, op, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return entity.NewSyncError(entity.KindTimeout, chain, op, err)
	}
	return entity.ClassifyTransportError(chain, op, err)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
