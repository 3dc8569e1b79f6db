package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
)

const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token() string
}

// Client issues request/response calls against the remote order API.
// Idempotent reads are retried with exponential backoff on NetworkError;
// commands are sent once.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	tokens          TokenSource
	retryMaxElapsed time.Duration
	logger          *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, retryMaxElapsed time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: timeout},
		tokens:          tokens,
		retryMaxElapsed: retryMaxElapsed,
		logger:          logger,
	}
}

func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	var resp dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, apperrors.NewNetworkError("login response without access_token", http.StatusOK, nil)
	}
	return &resp, nil
}

func (c *Client) ListOrders(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var resp dto.OrderListResponse
	if err := c.read(ctx, "/orders", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*dto.OrderDTO, error) {
	var resp dto.OrderDTO
	if err := c.read(ctx, "/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetHistory(ctx context.Context, orderID string) (*dto.HistoryResponse, error) {
	var resp dto.HistoryResponse
	if err := c.read(ctx, "/orders/"+url.PathEscape(orderID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*dto.CreateOrderResponse, error) {
	var resp dto.CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, req dto.StatusUpdateRequest) (*dto.StatusUpdateResponse, error) {
	var resp dto.StatusUpdateResponse
	if err := c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(orderID)+"/status", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		resp.OrderID = orderID
	}
	return &resp, nil
}

func (c *Client) ListStatuses(ctx context.Context) (*dto.StatusesResponse, error) {
	var resp dto.StatusesResponse
	if err := c.read(ctx, "/order-statuses", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListMerchants(ctx context.Context) (*dto.MerchantsResponse, error) {
	var resp dto.MerchantsResponse
	if err := c.read(ctx, "/merchants", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// read performs an idempotent GET, retrying transient failures.
func (c *Client) read(ctx context.Context, path string, query url.Values, out any) error {
	if c.retryMaxElapsed <= 0 {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.retryMaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		err := c.do(ctx, http.MethodGet, path, query, nil, out)
		if err == nil {
			return nil
		}
		if _, ok := apperrors.IsNetworkError(err); ok && ctx.Err() == nil {
			c.logger.Warn("read failed, retrying", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("encoding request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperrors.NewInternalError("building request", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(fmt.Sprintf("%s %s", method, path), 0, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("requestId", requestID),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewNetworkError(fmt.Sprintf("decoding %s %s response", method, path), resp.StatusCode, err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	reason := errorReason(raw, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(reason)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.NewRejectedError(resp.StatusCode, reason)
	default:
		return apperrors.NewNetworkError(fmt.Sprintf("%s %s: %s", method, path, reason), resp.StatusCode, nil)
	}
}

// errorReason extracts the remote "detail", which is a string for business
// errors and a list of {loc, msg} objects for request validation errors.
func errorReason(raw []byte, status int) string {
	var body dto.RemoteErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		switch d := body.Detail.(type) {
		case string:
			if strings.TrimSpace(d) != "" {
				return d
			}
		case []any:
			var msgs []string
			for _, item := range d {
				if m, ok := item.(map[string]any); ok {
					if msg, ok := m["msg"].(string); ok && msg != "" {
						msgs = append(msgs, msg)
					}
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return http.StatusText(status)
}
