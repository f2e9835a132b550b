package viewsettlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
	domainerrors "savemore/contexts/community-experience/view-settlement/domain/errors"
	"savemore/contexts/community-experience/view-settlement/ports"
	wstransport "savemore/contexts/community-experience/view-settlement/transport/ws"
)

type stubLedger struct {
	calls atomic.Int32
	items map[string]entities.ContentItem
}

func newStubLedger(items ...entities.ContentItem) *stubLedger {
	l := &stubLedger{items: make(map[string]entities.ContentItem)}
	for _, item := range items {
		l.items[item.ContentID] = item
	}
	return l
}

func (l *stubLedger) GetContent(_ context.Context, contentID string, _ string) (entities.ContentItem, error) {
	item, ok := l.items[contentID]
	if !ok {
		return entities.ContentItem{}, domainerrors.ErrUnknownContent
	}
	return item, nil
}

func (l *stubLedger) ProcessView(context.Context, string, string) (entities.SettlementOutcome, error) {
	l.calls.Add(1)
	return entities.SettlementOutcome{Success: true}, nil
}

func (l *stubLedger) GetBalance(_ context.Context, userID string) (entities.Balance, error) {
	return entities.Balance{UserID: userID, StarBalance: 50, WalletBalance: decimal.Zero}, nil
}

type chanTicker struct{ c chan time.Time }

func (t chanTicker) C() <-chan time.Time { return t.c }
func (t chanTicker) Stop()               {}

type envelope struct {
	Type          string `json:"type"`
	ItemID        string `json:"item_id"`
	State         string `json:"state"`
	Remaining     int    `json:"remaining_seconds"`
	Kind          string `json:"kind"`
	StarBalance   int64  `json:"star_balance"`
	WalletBalance string `json:"wallet_balance"`
	Message       string `json:"message"`
}

func dialSession(t *testing.T, module Module, viewerID string) (*websocket.Conn, chan struct{}) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		module.ServeSession(r.Context(), conn, viewerID)
		close(done)
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, done
}

func readUntil(t *testing.T, client *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := client.ReadMessage()
		require.NoError(t, err)
		var msg envelope
		require.NoError(t, json.Unmarshal(raw, &msg))
		if match(msg) {
			return msg
		}
	}
}

func TestServeSessionSettlesFreeItem(t *testing.T) {
	ledger := newStubLedger(entities.ContentItem{ContentID: "f1", OwnerID: "u1", MediaKind: entities.MediaKindImage})
	client, done := dialSession(t, NewModule(Dependencies{Ledger: ledger}), "u2")

	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{
		Type: wstransport.TypeMount,
		Item: &wstransport.ItemPayload{ContentID: "f1"},
	}))
	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{Type: wstransport.TypeVisible, ItemID: "f1"}))

	var sawBalance, sawNotification, sawSettled bool
	readUntil(t, client, func(msg envelope) bool {
		switch msg.Type {
		case wstransport.TypeBalance:
			assert.EqualValues(t, 50, msg.StarBalance)
			assert.Equal(t, "0.00", msg.WalletBalance)
			sawBalance = true
		case wstransport.TypeNotification:
			assert.Equal(t, "free", msg.Kind)
			sawNotification = true
		case wstransport.TypeItemState:
			sawSettled = sawSettled || msg.State == string(entities.AttemptSettled)
		}
		return sawBalance && sawNotification && sawSettled
	})
	assert.EqualValues(t, 1, ledger.calls.Load())

	require.NoError(t, client.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
}

func TestServeSessionReportsBadMessages(t *testing.T) {
	client, _ := dialSession(t, NewModule(Dependencies{Ledger: newStubLedger()}), "u2")

	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{Type: wstransport.TypeVisible, ItemID: "nope"}))
	msg := readUntil(t, client, func(msg envelope) bool { return msg.Type == wstransport.TypeError })
	assert.Equal(t, "item is not mounted", msg.Message)
}

func TestMountUsesLedgerPriceOverClientPayload(t *testing.T) {
	ledger := newStubLedger(entities.ContentItem{ContentID: "p1", OwnerID: "u1", StarPrice: 10, MediaKind: entities.MediaKindImage})
	tickers := make(chan chanTicker, 1)
	module := NewModule(Dependencies{
		Ledger: ledger,
		NewTicker: func(time.Duration) ports.Ticker {
			ticker := chanTicker{c: make(chan time.Time)}
			tickers <- ticker
			return ticker
		},
	})
	client, _ := dialSession(t, module, "u2")

	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{
		Type: wstransport.TypeMount,
		Item: &wstransport.ItemPayload{ContentID: "p1", OwnerID: "u2", StarPrice: 0, MediaKind: "video"},
	}))
	require.NoError(t, client.WriteJSON(wstransport.ClientMessage{Type: wstransport.TypeVisible, ItemID: "p1"}))

	pending := readUntil(t, client, func(msg envelope) bool {
		return msg.Type == wstransport.TypeItemState && msg.State == string(entities.AttemptEligiblePending)
	})
	assert.Equal(t, 30, pending.Remaining)

	var ticker chanTicker
	select {
	case ticker = <-tickers:
	case <-time.After(2 * time.Second):
		t.Fatal("dwell countdown did not start")
	}
	for i := 0; i < 29; i++ {
		ticker.c <- time.Now()
	}
	assert.Zero(t, ledger.calls.Load())

	ticker.c <- time.Now()
	readUntil(t, client, func(msg envelope) bool {
		return msg.Type == wstransport.TypeItemState && msg.State == string(entities.AttemptSettled)
	})
	assert.EqualValues(t, 1, ledger.calls.Load())
}

func TestMountRejectsUnregisteredContent(t *testing.T) {
	ledger := newStubLedger()
	runtime := NewModule(Dependencies{Ledger: ledger}).StartSession(context.Background(), "u2", Outputs{})
	defer runtime.Close()

	_, err := runtime.MountContent(context.Background(), "ghost")
	assert.ErrorIs(t, err, domainerrors.ErrUnknownContent)
	_, err = runtime.MountContent(context.Background(), " ")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidItem)
	_, ok := runtime.Surface.Attempt("ghost")
	assert.False(t, ok)
}

func TestMountWithoutCatalogFails(t *testing.T) {
	runtime := NewModule(Dependencies{Ledger: ledgerOnly{}}).StartSession(context.Background(), "u2", Outputs{})
	defer runtime.Close()

	_, err := runtime.MountContent(context.Background(), "p1")
	assert.ErrorIs(t, err, domainerrors.ErrLedgerUnavailable)
}

type ledgerOnly struct{}

func (ledgerOnly) ProcessView(context.Context, string, string) (entities.SettlementOutcome, error) {
	return entities.SettlementOutcome{}, nil
}

func (ledgerOnly) GetBalance(_ context.Context, userID string) (entities.Balance, error) {
	return entities.Balance{UserID: userID}, nil
}
