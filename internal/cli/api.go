package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"savemore/contexts/community-experience/view-settlement/adapters/ledgerclient"
	"savemore/internal/platform/resilience"
)

// ledgerAPI issues operator calls to the ledger HTTP API.
type ledgerAPI struct {
	opts     *RootOptions
	http     *http.Client
	executor failsafe.Executor[*http.Response]
}

func newLedgerAPI(opts *RootOptions) *ledgerAPI {
	return &ledgerAPI{
		opts:     opts,
		http:     &http.Client{Timeout: 15 * time.Second},
		executor: resilience.NewHTTPExecutor(resilience.DefaultHTTPConfig("savemorectl")),
	}
}

func (a *ledgerAPI) call(ctx context.Context, method string, path string, idempotencyKey string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = encoded
	}
	baseURL := strings.TrimRight(a.opts.LedgerURL, "/")

	resp, err := resilience.Do(ctx, a.executor, nil, a.http, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}
		a.authenticate(req)
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &ledgerclient.APIError{StatusCode: resp.StatusCode}
		var decoded struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
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

func (a *ledgerAPI) authenticate(req *http.Request) {
	if a.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.opts.Token)
		return
	}
	if a.opts.UserID != "" {
		req.Header.Set("X-User-Id", a.opts.UserID)
	}
	if a.opts.Role != "" {
		req.Header.Set("X-User-Role", a.opts.Role)
	}
}
