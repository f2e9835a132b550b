package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viewsettlement "savemore/contexts/community-experience/view-settlement"
	"savemore/contexts/community-experience/view-settlement/adapters/ledgerclient"
	wstransport "savemore/contexts/community-experience/view-settlement/transport/ws"
	starledger "savemore/contexts/finance-core/star-ledger"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	ledgerhttp "savemore/contexts/finance-core/star-ledger/transport/http"
	"savemore/internal/platform/auth"
	"savemore/internal/platform/metrics"
)

func newTestServer() *Server {
	return New(Dependencies{
		Ledger:  starledger.NewInMemoryModule(services.DefaultSplitPolicy(), slog.Default()),
		Metrics: metrics.New("savemore-test"),
		Logger:  slog.Default(),
	}, ":0")
}

func doJSON(t *testing.T, server *Server, method string, path string, userID string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func creditStars(t *testing.T, server *Server, userID string, amount int64) {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/admin/stars/credit", "ops",
		ledgerhttp.CreditStarsRequest{UserID: userID, Amount: amount},
		"X-User-Role", auth.RoleAdmin, "Idempotency-Key", "topup-"+userID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func publish(t *testing.T, server *Server, ownerID string, req ledgerhttp.PublishContentRequest) {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/content", ownerID, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	failing := New(Dependencies{
		Ledger: starledger.NewInMemoryModule(services.DefaultSplitPolicy(), slog.Default()),
		Ready:  func(context.Context) error { return errors.New("db down") },
	}, ":0")
	rr = doJSON(t, failing, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestProcessViewRequiresAuthentication(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/views", "", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthenticated", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)
}

func TestPaidPostSettlesOnceThroughAPI(t *testing.T) {
	server := newTestServer()
	creditStars(t, server, "viewer-1", 50)
	publish(t, server, "owner-1", ledgerhttp.PublishContentRequest{ContentID: "post-1", Kind: "post", MediaKind: "image", StarPrice: 10})

	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-1", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeBody[ledgerhttp.SettlementOutcomeResponse](t, rr)
	assert.True(t, first.Success)
	assert.True(t, first.Charged)
	assert.EqualValues(t, 10, first.StarsSpent)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-1", "viewer-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 40, decodeBody[ledgerhttp.BalanceResponse](t, rr).StarBalance)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-1", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeBody[ledgerhttp.SettlementOutcomeResponse](t, rr)
	assert.True(t, second.AlreadyViewed)
	assert.False(t, second.Charged)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/users/viewer-1/entries?limit=10", "viewer-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decodeBody[ledgerhttp.ListEntriesResponse](t, rr).Items)
}

func TestProcessViewUnknownContentIsDeclinedOutcome(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-1", ledgerhttp.ProcessViewRequest{ContentID: "missing"})
	require.Equal(t, http.StatusOK, rr.Code)
	outcome := decodeBody[ledgerhttp.SettlementOutcomeResponse](t, rr)
	assert.False(t, outcome.Success)
	assert.Equal(t, "content not found", outcome.Message)
}

func TestBalanceOfAnotherUserIsForbidden(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-2", "viewer-1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-2", "ops", nil, "X-User-Role", auth.RoleAdmin)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListEntriesRejectsBadPaging(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodGet, "/v1/ledger/users/viewer-1/entries?limit=abc", "viewer-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/users/viewer-1/entries?offset=-1", "viewer-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreditStarsRequiresAdmin(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/admin/stars/credit", "viewer-1",
		ledgerhttp.CreditStarsRequest{UserID: "viewer-1", Amount: 1000}, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSpendStarsErrors(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/stars/spend", "viewer-1",
		ledgerhttp.SpendStarsRequest{Amount: 5, Reason: "boost"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "idempotency_key_required", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/stars/spend", "viewer-1",
		ledgerhttp.SpendStarsRequest{Amount: 5, Reason: "boost"}, "Idempotency-Key", "spend-1")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "insufficient_stars", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)
}

func registerGroup(t *testing.T, server *Server, ownerID string, groupID string, fee int64) {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/groups", ownerID,
		ledgerhttp.RegisterGroupRequest{GroupID: groupID, FeeStars: fee})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestJoinGroupChargesOnce(t *testing.T) {
	server := newTestServer()
	creditStars(t, server, "member-1", 20)
	registerGroup(t, server, "owner-1", "g1", 5)

	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/groups/g1/join", "member-1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	joined := decodeBody[ledgerhttp.JoinGroupResponse](t, rr)
	assert.True(t, joined.Joined)
	assert.EqualValues(t, 15, joined.StarBalance)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/groups/g1/join", "member-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[ledgerhttp.JoinGroupResponse](t, rr).AlreadyMember)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/groups/g1/join", "owner-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/groups", "someone-else",
		ledgerhttp.RegisterGroupRequest{GroupID: "g1", FeeStars: 0})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "group_exists", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)
}

func TestJoinGroupIgnoresCallerSuppliedOwnerAndFee(t *testing.T) {
	server := newTestServer()
	creditStars(t, server, "member-1", 50)
	registerGroup(t, server, "owner-1", "g1", 20)

	forged := map[string]any{"owner_id": "accomplice", "fee_stars": 0}
	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/groups/g1/join", "member-1", forged)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	joined := decodeBody[ledgerhttp.JoinGroupResponse](t, rr)
	assert.EqualValues(t, 20, joined.StarsCharged)
	assert.EqualValues(t, 30, joined.StarBalance)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/owner-1", "owner-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "16.00", decodeBody[ledgerhttp.BalanceResponse](t, rr).WalletBalance)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/accomplice", "accomplice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0.00", decodeBody[ledgerhttp.BalanceResponse](t, rr).WalletBalance)

	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/groups/unregistered/join", "member-1", forged)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)
}

func TestGetContentReturnsRegisteredRecord(t *testing.T) {
	server := newTestServer()
	publish(t, server, "owner-1", ledgerhttp.PublishContentRequest{ContentID: "post-1", Kind: "post", MediaKind: "video", StarPrice: 7})

	rr := doJSON(t, server, http.MethodGet, "/v1/ledger/content/post-1", "viewer-1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	item := decodeBody[ledgerhttp.ContentResponse](t, rr)
	assert.Equal(t, "owner-1", item.OwnerID)
	assert.EqualValues(t, 7, item.StarPrice)
	assert.Equal(t, "video", item.MediaKind)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/content/missing", "viewer-1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProcessViewIsRateLimitedPerViewer(t *testing.T) {
	server := New(Dependencies{
		Ledger:             starledger.NewInMemoryModule(services.DefaultSplitPolicy(), slog.Default()),
		RateLimitPerMinute: 1,
	}, ":0")

	rr := doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-1", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-1", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	rr = doJSON(t, server, http.MethodPost, "/v1/ledger/views", "viewer-2", ledgerhttp.ProcessViewRequest{ContentID: "post-1"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBearerTokenRequiredWhenSecretConfigured(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	server := New(Dependencies{
		Ledger: starledger.NewInMemoryModule(services.DefaultSplitPolicy(), slog.Default()),
		Auth:   verifier,
	}, ":0")

	rr := doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-1", "viewer-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := verifier.IssueToken("viewer-1", auth.RoleViewer, time.Minute)
	require.NoError(t, err)
	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-1", "", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, server, http.MethodGet, "/v1/ledger/balances/viewer-1", "", nil, "Authorization", "Bearer nope")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_token", decodeBody[ledgerhttp.ErrorResponse](t, rr).Code)
}

func TestMetricsEndpointServesRequestCounters(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.Handler().ServeHTTP(httptest.NewRecorder(), req)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `route="GET /healthz"`)
}

type sessionMessage struct {
	Type        string `json:"type"`
	ItemID      string `json:"item_id"`
	State       string `json:"state"`
	Kind        string `json:"kind"`
	StarBalance int64  `json:"star_balance"`
	Message     string `json:"message"`
}

func TestViewingSessionChargesVideoAfterPlayback(t *testing.T) {
	var server *Server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.Handler().ServeHTTP(w, r)
	}))
	defer ts.Close()

	ledger := starledger.NewInMemoryModule(services.DefaultSplitPolicy(), slog.Default())
	server = New(Dependencies{
		Ledger:  ledger,
		Viewing: viewsettlement.NewModule(viewsettlement.Dependencies{Ledger: ledgerclient.New(ts.URL, ledgerclient.Credentials{})}),
		Metrics: metrics.New("savemore-test"),
	}, ":0")
	creditStars(t, server, "viewer-1", 50)
	publish(t, server, "owner-1", ledgerhttp.PublishContentRequest{ContentID: "clip-1", Kind: "post", MediaKind: "video", StarPrice: 10})

	header := http.Header{}
	header.Set("X-User-Id", "viewer-1")
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/viewing/session", header)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{
		Type: wstransport.TypeMount,
		Item: &wstransport.ItemPayload{ContentID: "ghost"},
	}))
	// Only the content id is trusted; the rest comes from the ledger.
	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{
		Type: wstransport.TypeMount,
		Item: &wstransport.ItemPayload{ContentID: "clip-1"},
	}))
	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{Type: wstransport.TypeVisible, ItemID: "clip-1"}))
	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{Type: wstransport.TypePlaybackEnded, ItemID: "clip-1"}))

	var charged, settled, refreshed, rejected bool
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for !(charged && settled && refreshed && rejected) {
		_, raw, err := client.ReadMessage()
		require.NoError(t, err)
		var msg sessionMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		switch msg.Type {
		case wstransport.TypeError:
			assert.Equal(t, "content is not registered with the ledger", msg.Message)
			rejected = true
		case wstransport.TypeNotification:
			assert.Equal(t, "charged", msg.Kind)
			charged = true
		case wstransport.TypeItemState:
			settled = settled || msg.State == "settled"
		case wstransport.TypeBalance:
			refreshed = refreshed || msg.StarBalance == 40
		}
	}
}

func TestViewingSessionRequiresAuthentication(t *testing.T) {
	server := newTestServer()
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/viewing/session", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
