package commands

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savemore/contexts/finance-core/star-ledger/adapters/memory"
	"savemore/contexts/finance-core/star-ledger/domain/entities"
	domainerrors "savemore/contexts/finance-core/star-ledger/domain/errors"
	"savemore/contexts/finance-core/star-ledger/domain/services"
	"savemore/contexts/finance-core/star-ledger/ports"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type ledgerFixture struct {
	store   *memory.Store
	clock   *fixedClock
	view    ProcessViewUseCase
	publish PublishContentUseCase
	credit  CreditStarsUseCase
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return ledgerFixture{
		store: store,
		clock: clock,
		view: ProcessViewUseCase{
			Repo:   store,
			Clock:  clock,
			IDGen:  store,
			Policy: services.DefaultSplitPolicy(),
		},
		publish: PublishContentUseCase{Repo: store, Clock: clock, IDGen: store, StoryTTL: 24 * time.Hour},
		credit:  CreditStarsUseCase{Repo: store, Clock: clock, IDGen: store},
	}
}

func (f ledgerFixture) seedStars(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.credit.Execute(context.Background(), CreditStarsCommand{
		UserID:         userID,
		Amount:         amount,
		ActorID:        "admin",
		IdempotencyKey: "seed-" + userID,
	})
	require.NoError(t, err)
}

func (f ledgerFixture) seedPost(t *testing.T, contentID string, ownerID string, price int64) {
	t.Helper()
	_, err := f.publish.Execute(context.Background(), PublishContentCommand{
		ContentID: contentID,
		OwnerID:   ownerID,
		Kind:      entities.ContentKindPost,
		MediaKind: entities.MediaKindImage,
		StarPrice: price,
	})
	require.NoError(t, err)
}

func (f ledgerFixture) account(t *testing.T, userID string) entities.Account {
	t.Helper()
	account, err := f.store.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return account
}

func TestProcessViewChargesOnceAndSplits(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 50)
	f.seedPost(t, "p1", "u1", 10)

	first, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.True(t, first.Charged)
	assert.False(t, first.AlreadyViewed)
	assert.Equal(t, int64(10), first.StarsSpent)
	assert.Equal(t, "3.50", first.ViewerEarn.StringFixed(2))

	viewer := f.account(t, "u2")
	assert.Equal(t, int64(40), viewer.StarBalance)
	assert.Equal(t, "3.50", viewer.WalletBalance.StringFixed(2))
	assert.Equal(t, "4.00", f.account(t, "u1").WalletBalance.StringFixed(2))
	assert.Equal(t, "2.50", f.account(t, "platform").WalletBalance.StringFixed(2))

	second, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyViewed)
	assert.False(t, second.Charged)
	assert.Equal(t, int64(40), f.account(t, "u2").StarBalance)
	assert.Equal(t, 1, f.store.ViewCount("p1"))
}

func TestProcessViewOwnerAndFreeContentNeverCharge(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u1", 50)
	f.seedStars(t, "u2", 50)
	f.seedPost(t, "paid", "u1", 10)
	f.seedPost(t, "free", "u1", 0)

	own, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "paid", ViewerID: "u1"})
	require.NoError(t, err)
	assert.True(t, own.Success)
	assert.False(t, own.Charged)

	free, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "free", ViewerID: "u2"})
	require.NoError(t, err)
	assert.True(t, free.Success)
	assert.False(t, free.Charged)

	assert.Equal(t, int64(50), f.account(t, "u1").StarBalance)
	assert.Equal(t, int64(50), f.account(t, "u2").StarBalance)
	assert.True(t, f.account(t, "u1").WalletBalance.IsZero())
}

func TestProcessViewInsufficientThenAlreadyViewed(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 3)
	f.seedPost(t, "p1", "u1", 10)

	first, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.True(t, first.InsufficientStars)
	assert.Equal(t, int64(3), first.AvailableStars)
	assert.Equal(t, int64(10), first.RequiredStars)

	second, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
	require.NoError(t, err)
	assert.True(t, second.AlreadyViewed)
	assert.Equal(t, int64(3), f.account(t, "u2").StarBalance)
}

func TestProcessViewDeclinesUnknownAndExpiredStories(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 50)
	_, err := f.publish.Execute(ctx, PublishContentCommand{
		ContentID: "s1",
		OwnerID:   "u1",
		Kind:      entities.ContentKindStory,
		MediaKind: entities.MediaKindVideo,
		StarPrice: 5,
	})
	require.NoError(t, err)

	unknown, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "missing", ViewerID: "u2"})
	require.NoError(t, err)
	assert.False(t, unknown.Success)
	assert.Equal(t, "content not found", unknown.Message)

	f.clock.now = f.clock.now.Add(25 * time.Hour)
	expired, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "s1", ViewerID: "u2"})
	require.NoError(t, err)
	assert.False(t, expired.Success)
	assert.Equal(t, "story has expired", expired.Message)
	assert.Equal(t, int64(50), f.account(t, "u2").StarBalance)
}

func TestProcessViewConcurrentCallsChargeOnce(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedStars(t, "u2", 50)
	f.seedPost(t, "p1", "u1", 10)

	var wg sync.WaitGroup
	results := make(chan entities.SettlementOutcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.view.Execute(context.Background(), ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
			assert.NoError(t, err)
			results <- outcome
		}()
	}
	wg.Wait()
	close(results)

	charged := 0
	for outcome := range results {
		if outcome.Charged {
			charged++
		} else {
			assert.True(t, outcome.AlreadyViewed)
		}
	}
	assert.Equal(t, 1, charged)
	assert.Equal(t, int64(40), f.account(t, "u2").StarBalance)
}

func TestProcessViewWritesOutboxEnvelope(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 50)
	f.seedPost(t, "p1", "u1", 10)

	_, err := f.view.Execute(ctx, ProcessViewCommand{ContentID: "p1", ViewerID: "u2"})
	require.NoError(t, err)

	pending, err := f.store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	last := pending[len(pending)-1]
	assert.Equal(t, EventTypeViewSettled, last.EventType)

	var envelope ports.EventEnvelope
	require.NoError(t, json.Unmarshal(last.Payload, &envelope))
	var data map[string]any
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "p1", data["content_id"])
	assert.Equal(t, true, data["charged"])
	assert.ElementsMatch(t, []any{"platform", "u1", "u2"}, data[AffectedUsersKey])
}

func TestSpendStarsReplaysAndRejectsConflicts(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u1", 20)
	spend := SpendStarsUseCase{Repo: f.store, Clock: f.clock, IDGen: f.store}

	first, err := spend.Execute(ctx, SpendStarsCommand{UserID: "u1", Amount: 5, Reason: "boost", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, int64(15), first.StarBalance)
	assert.False(t, first.Replayed)

	replay, err := spend.Execute(ctx, SpendStarsCommand{UserID: "u1", Amount: 5, Reason: "boost", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.EntryID, replay.EntryID)
	assert.Equal(t, int64(15), f.account(t, "u1").StarBalance)

	_, err = spend.Execute(ctx, SpendStarsCommand{UserID: "u1", Amount: 6, Reason: "boost", IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)

	_, err = spend.Execute(ctx, SpendStarsCommand{UserID: "u1", Amount: 100, Reason: "boost", IdempotencyKey: "k2"})
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientStars)
	assert.Equal(t, int64(15), f.account(t, "u1").StarBalance)

	_, err = spend.Execute(ctx, SpendStarsCommand{UserID: "u1", Amount: 1})
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyKeyMissing)
}

func TestDeductVoiceCreditsRoundsUpAndSuggestsRecharge(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u1", 25)
	voice := DeductVoiceCreditsUseCase{Repo: f.store, Clock: f.clock, IDGen: f.store, SecondsPerStar: 10, RechargeThreshold: 20}

	result, err := voice.Execute(ctx, DeductVoiceCreditsCommand{UserID: "u1", DurationSeconds: 41, IdempotencyKey: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.StarsDeducted)
	assert.Equal(t, int64(20), result.StarBalance)
	assert.False(t, result.RechargeSuggested)

	result, err = voice.Execute(ctx, DeductVoiceCreditsCommand{UserID: "u1", DurationSeconds: 5, IdempotencyKey: "voice-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.StarsDeducted)
	assert.True(t, result.RechargeSuggested)
}

func (f ledgerFixture) registerGroup(t *testing.T, groupID string, ownerID string, fee int64) {
	t.Helper()
	_, err := RegisterGroupUseCase{Repo: f.store, Clock: f.clock}.Execute(context.Background(), RegisterGroupCommand{
		GroupID:  groupID,
		OwnerID:  ownerID,
		FeeStars: fee,
	})
	require.NoError(t, err)
}

func (f ledgerFixture) joinGroup() JoinGroupUseCase {
	return JoinGroupUseCase{Repo: f.store, Clock: f.clock, IDGen: f.store, Policy: services.DefaultSplitPolicy()}
}

func TestJoinGroupChargesOnceAndSplitsFee(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 30)
	f.registerGroup(t, "g1", "u1", 10)
	join := f.joinGroup()

	first, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, first.Joined)
	assert.Equal(t, int64(10), first.StarsCharged)
	assert.Equal(t, int64(20), first.StarBalance)
	assert.True(t, f.account(t, "u1").WalletBalance.Equal(decimal.RequireFromString("8.00")))
	assert.True(t, f.account(t, "platform").WalletBalance.Equal(decimal.RequireFromString("2.00")))

	again, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyMember)
	assert.Equal(t, int64(20), f.account(t, "u2").StarBalance)

	_, err = join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u1"})
	assert.ErrorIs(t, err, domainerrors.ErrSelfGroupJoin)
}

func TestJoinGroupAlwaysChargesRegisteredFeeToRegisteredOwner(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 50)
	f.seedStars(t, "u3", 50)
	f.registerGroup(t, "g1", "u1", 20)
	join := f.joinGroup()

	paid, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), paid.StarsCharged)
	assert.Equal(t, int64(30), paid.StarBalance)

	second, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u3"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), second.StarsCharged)
	assert.Equal(t, int64(30), second.StarBalance)

	assert.True(t, f.account(t, "u1").WalletBalance.Equal(decimal.RequireFromString("32.00")))
	_, err = f.store.GetAccount(ctx, "u9")
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
}

func TestJoinGroupRejectsUnregisteredGroup(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedStars(t, "u2", 50)

	_, err := f.joinGroup().Execute(context.Background(), JoinGroupCommand{GroupID: "g-unknown", UserID: "u2"})
	assert.ErrorIs(t, err, domainerrors.ErrGroupNotFound)
	assert.Equal(t, int64(50), f.account(t, "u2").StarBalance)
}

func TestRegisterGroupValidatesAndRejectsDuplicates(t *testing.T) {
	f := newLedgerFixture(t)
	register := RegisterGroupUseCase{Repo: f.store, Clock: f.clock}
	ctx := context.Background()

	_, err := register.Execute(ctx, RegisterGroupCommand{GroupID: "g1", OwnerID: "u1", FeeStars: -1})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	group, err := register.Execute(ctx, RegisterGroupCommand{GroupID: "g1", OwnerID: "u1", FeeStars: 0})
	require.NoError(t, err)
	assert.Equal(t, "u1", group.OwnerID)

	_, err = register.Execute(ctx, RegisterGroupCommand{GroupID: "g1", OwnerID: "u9", FeeStars: 0})
	assert.ErrorIs(t, err, domainerrors.ErrGroupExists)
}

func TestJoinGroupRollsBackWhenStarsRunShort(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.seedStars(t, "u2", 5)
	f.registerGroup(t, "g1", "u1", 10)
	f.registerGroup(t, "g-free", "u1", 0)
	join := f.joinGroup()

	_, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u2"})
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientStars)

	again, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g1", UserID: "u2"})
	assert.ErrorIs(t, err, domainerrors.ErrInsufficientStars)
	assert.False(t, again.Joined)

	result, err := join.Execute(ctx, JoinGroupCommand{GroupID: "g-free", UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, result.Joined)
	assert.Equal(t, int64(5), f.account(t, "u2").StarBalance)
}

func TestPublishContentRejectsDuplicates(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedPost(t, "p1", "u1", 10)

	_, err := f.publish.Execute(context.Background(), PublishContentCommand{
		ContentID: "p1",
		OwnerID:   "u1",
		Kind:      entities.ContentKindPost,
		MediaKind: entities.MediaKindImage,
		StarPrice: 10,
	})
	assert.ErrorIs(t, err, domainerrors.ErrContentExists)
}
