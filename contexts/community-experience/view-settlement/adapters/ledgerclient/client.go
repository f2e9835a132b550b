package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/shopspring/decimal"

	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/internal/platform/resilience"
)

const moduleName = "community-experience/view-settlement"

// Credentials authenticate calls made on behalf of a viewer. A bearer token
// wins over the plain user header.
type Credentials struct {
	BearerToken string
	UserID      string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithExecutor replaces the executor used for reads.
func WithExecutor(executor failsafe.Executor[*http.Response]) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// WithSettleExecutor replaces the executor used for ProcessView. It should
// only retry with resilience.RetryUnsent.
func WithSettleExecutor(executor failsafe.Executor[*http.Response]) Option {
	return func(c *Client) {
		if executor != nil {
			c.settle = executor
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the star ledger HTTP API. ProcessView is retried only
// when the ledger cannot have handled the request: a repeat of a charged
// view reports already_viewed, so a lost response must not be replayed.
type Client struct {
	baseURL  string
	creds    Credentials
	http     *http.Client
	executor failsafe.Executor[*http.Response]
	settle   failsafe.Executor[*http.Response]
	logger   *slog.Logger
}

func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		cfg := resilience.DefaultHTTPConfig("star-ledger")
		cfg.Logger = c.logger
		c.executor = resilience.NewHTTPExecutor(cfg)
	}
	if c.settle == nil {
		cfg := resilience.DefaultHTTPConfig("star-ledger-settle")
		cfg.ShouldRetry = resilience.RetryUnsent
		cfg.Logger = c.logger
		c.settle = resilience.NewHTTPExecutor(cfg)
	}
	return c
}

// APIError is a non-2xx answer from the ledger.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type processViewRequest struct {
	ContentID string `json:"content_id"`
}

type outcomeResponse struct {
	Success           bool   `json:"success"`
	AlreadyViewed     bool   `json:"already_viewed"`
	Charged           bool   `json:"charged"`
	InsufficientStars bool   `json:"insufficient_stars"`
	StarsSpent        int64  `json:"stars_spent"`
	ViewerEarn        string `json:"viewer_earn"`
	AvailableStars    int64  `json:"available_stars"`
	RequiredStars     int64  `json:"required_stars"`
	Message           string `json:"message"`
}

type balanceResponse struct {
	UserID        string `json:"user_id"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
	UpdatedAt     string `json:"updated_at"`
}

type contentResponse struct {
	ContentID string `json:"content_id"`
	OwnerID   string `json:"owner_id"`
	MediaKind string `json:"media_kind"`
	StarPrice int64  `json:"star_price"`
	CreatedAt string `json:"created_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) ProcessView(ctx context.Context, contentID string, viewerID string) (entities.SettlementOutcome, error) {
	var out outcomeResponse
	creds := c.creds
	if creds.BearerToken == "" {
		creds.UserID = viewerID
	}
	req := request{method: http.MethodPost, path: "/v1/ledger/views", creds: creds, body: processViewRequest{ContentID: contentID}}
	if err := c.do(ctx, c.settle, resilience.RetryUnsent, req, &out); err != nil {
		return entities.SettlementOutcome{}, err
	}
	earn := decimal.Zero
	if out.ViewerEarn != "" {
		parsed, err := decimal.NewFromString(out.ViewerEarn)
		if err != nil {
			return entities.SettlementOutcome{}, fmt.Errorf("decode viewer_earn: %w", err)
		}
		earn = parsed
	}
	return entities.SettlementOutcome{
		Success:           out.Success,
		AlreadyViewed:     out.AlreadyViewed,
		Charged:           out.Charged,
		InsufficientStars: out.InsufficientStars,
		StarsSpent:        out.StarsSpent,
		ViewerEarn:        earn,
		AvailableStars:    out.AvailableStars,
		RequiredStars:     out.RequiredStars,
		Message:           out.Message,
	}, nil
}

func (c *Client) GetBalance(ctx context.Context, userID string) (entities.Balance, error) {
	var out balanceResponse
	creds := c.creds
	if creds.BearerToken == "" {
		creds.UserID = userID
	}
	req := request{method: http.MethodGet, path: "/v1/ledger/balances/" + url.PathEscape(userID), creds: creds}
	if err := c.do(ctx, c.executor, nil, req, &out); err != nil {
		return entities.Balance{}, err
	}
	return entities.ParseBalance(out.UserID, out.StarBalance, out.WalletBalance, out.UpdatedAt)
}

// GetContent fetches the ledger's record for contentID. A 404 maps to
// ErrUnknownContent.
func (c *Client) GetContent(ctx context.Context, contentID string, viewerID string) (entities.ContentItem, error) {
	var out contentResponse
	creds := c.creds
	if creds.BearerToken == "" {
		creds.UserID = viewerID
	}
	req := request{method: http.MethodGet, path: "/v1/ledger/content/" + url.PathEscape(contentID), creds: creds}
	if err := c.do(ctx, c.executor, nil, req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return entities.ContentItem{}, domainerrors.ErrUnknownContent
		}
		return entities.ContentItem{}, err
	}
	return entities.ParseContentItem(out.ContentID, out.OwnerID, out.StarPrice, out.MediaKind, out.CreatedAt)
}

type request struct {
	method string
	path   string
	creds  Credentials
	body   any
}

func (c *Client) do(
	ctx context.Context,
	executor failsafe.Executor[*http.Response],
	shouldRetry func(*http.Response, error) bool,
	r request,
	out any,
) error {
	method, path, creds := r.method, r.path, r.creds
	var payload []byte
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		payload = encoded
	}

	resp, err := resilience.Do(ctx, executor, shouldRetry, c.http, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if creds.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+creds.BearerToken)
		} else if creds.UserID != "" {
			req.Header.Set("X-User-Id", creds.UserID)
		}
		return req, nil
	})
	if err != nil {
		application.ResolveLogger(c.logger).Warn("ledger request failed",
			"event", "ledger_client_request_failed",
			"module", moduleName,
			"layer", "adapter",
			"method", method,
			"path", path,
			"error", err.Error(),
		)
		return fmt.Errorf("ledger %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &decoded) == nil {
			apiErr.Code, apiErr.Message = decoded.Code, decoded.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
