package marketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// codeOK is the envelope code the backend uses for success.
const codeOK = 200

// envelope is the backend's response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TokenSource supplies the bearer token of the session issuing a request.
type TokenSource interface {
	Token() string
}

// Client talks to the rental backend's REST API. One Client holds the
// connection pool and outbound rate limit; Bind derives per-session views.
type Client struct {
	baseURL        string
	timeout        time.Duration
	http           *fasthttp.Client
	limiter        *rate.Limiter
	tokens         TokenSource
	onUnauthorized func(rejected string)
}

func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	limit := rate.Inf
	burst := 0
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "rentalportal",
			MaxIdleConnDuration: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Bind returns a view of c that authenticates with tokens and calls
// onUnauthorized with the token that was sent when the backend rejects it
// with a 401.
func (c *Client) Bind(tokens TokenSource, onUnauthorized func(rejected string)) *Client {
	bound := *c
	bound.tokens = tokens
	bound.onUnauthorized = onUnauthorized
	return &bound
}

// do sends one request and decodes the envelope's data into out (which may
// be nil). endpoint is the low-cardinality label used for metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NetworkFailure("Request cancelled", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.BadRequest("Invalid request payload", err)
		}
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "network").Inc()
		logger.Warn("Backend %s %s failed: %v", method, path, err)
		return errors.NetworkFailure("Rental service unreachable", err)
	}

	status := resp.StatusCode()
	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if status == http.StatusUnauthorized || (decodeErr == nil && env.Code == http.StatusUnauthorized) {
		metrics.BackendErrors.WithLabelValues(endpoint, "auth_invalid").Inc()
		if c.onUnauthorized != nil {
			c.onUnauthorized(token)
		}
		return errors.AuthInvalid("Credential rejected by rental service", nil)
	}

	if status < 200 || status >= 300 {
		metrics.BackendErrors.WithLabelValues(endpoint, "rejected").Inc()
		message := env.Message
		if decodeErr != nil || message == "" {
			message = fmt.Sprintf("Rental service returned %d", status)
		}
		return errors.ServerRejected(message, status, nil)
	}

	if decodeErr != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "rejected").Inc()
		return errors.ServerRejected("Malformed response from rental service", 0, decodeErr)
	}

	if env.Code != codeOK {
		metrics.BackendErrors.WithLabelValues(endpoint, "rejected").Inc()
		message := env.Message
		if message == "" {
			message = "Request failed"
		}
		return errors.ServerRejected(message, env.Code, nil)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		metrics.BackendErrors.WithLabelValues(endpoint, "rejected").Inc()
		return errors.ServerRejected("Malformed response from rental service", 0, err)
	}
	return nil
}
