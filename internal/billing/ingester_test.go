package billing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

type fakeEvent struct {
	id     string
	effect Effect
	lookup UserLookup
	at     time.Time
	err    error
}

type fakeAdapter struct{}

func (fakeAdapter) Vendor() string { return "fake" }
func (fakeAdapter) RejectStatus() int { return http.StatusUnauthorized }

func (fakeAdapter) EventID(evt fakeEvent) string { return evt.id }
func (fakeAdapter) Classify(evt fakeEvent) Effect { return evt.effect }
func (fakeAdapter) LookupKey(evt fakeEvent) UserLookup { return evt.lookup }
func (fakeAdapter) Change(evt fakeEvent, e Effect) user.BillingChange {
	return user.BillingChange{Source: user.SourceStripe, SubscriptionActive: e == Grant, EventAt: evt.at}
}

// scriptedAdapter returns a prepared event from Verify.
type scriptedAdapter struct {
	fakeAdapter
	next fakeEvent
}

func (a *scriptedAdapter) Verify(_ http.Header, _ []byte) (fakeEvent, error) {
	return a.next, a.next.err
}

func newDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeduper(client, 72*time.Hour), mr
}

func TestIngest_Outcomes(t *testing.T) {
	u := &user.User{ID: uuid.New(), BillingCustomerID: "cus_1"}
	now := time.Now()

	tests := []struct {
		name    string
		evt     fakeEvent
		want    Outcome
		wantErr error
		active  bool
	}{
		{
			name:   "grant by user id",
			evt:    fakeEvent{id: "e1", effect: Grant, lookup: UserLookup{UserID: u.ID}, at: now},
			want:   OutcomeApplied,
			active: true,
		},
		{
			name:   "grant by customer",
			evt:    fakeEvent{id: "e2", effect: Grant, lookup: UserLookup{CustomerID: "cus_1"}, at: now},
			want:   OutcomeApplied,
			active: true,
		},
		{
			name:   "stale user id falls back to customer",
			evt:    fakeEvent{id: "e3", effect: Grant, lookup: UserLookup{UserID: uuid.New(), CustomerID: "cus_1"}, at: now},
			want:   OutcomeApplied,
			active: true,
		},
		{
			name: "ignored",
			evt:  fakeEvent{id: "e4", effect: Ignore, lookup: UserLookup{UserID: u.ID}},
			want: OutcomeIgnored,
		},
		{
			name: "unknown user",
			evt:  fakeEvent{id: "e5", effect: Grant, lookup: UserLookup{UserID: uuid.New()}},
			want: OutcomeUnknownUser,
		},
		{
			name: "no lookup keys",
			evt:  fakeEvent{id: "e6", effect: Revoke},
			want: OutcomeUnknownUser,
		},
		{
			name:    "verification failure",
			evt:     fakeEvent{err: ErrVerification},
			want:    OutcomeRejected,
			wantErr: ErrVerification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMemoryUsers(&user.User{ID: u.ID, BillingCustomerID: u.BillingCustomerID})
			ing := NewIngester[fakeEvent](&scriptedAdapter{next: tt.evt}, users, nil)

			outcome, err := ing.Ingest(context.Background(), http.Header{}, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, tt.active, users.get(u.ID).SubscriptionActive)
		})
	}
}

func TestIngest_StaleEventDoesNotOverwrite(t *testing.T) {
	u := &user.User{ID: uuid.New()}
	users := newMemoryUsers(u)
	adapter := &scriptedAdapter{}
	ing := NewIngester[fakeEvent](adapter, users, nil)
	ctx := context.Background()
	t0 := time.Now()

	adapter.next = fakeEvent{id: "revoke", effect: Revoke, lookup: UserLookup{UserID: u.ID}, at: t0}
	outcome, err := ing.Ingest(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	adapter.next = fakeEvent{id: "grant", effect: Grant, lookup: UserLookup{UserID: u.ID}, at: t0.Add(-time.Minute)}
	outcome, err = ing.Ingest(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)
	assert.False(t, users.get(u.ID).SubscriptionActive)
}

func TestIngest_Dedup(t *testing.T) {
	u := &user.User{ID: uuid.New()}
	users := newMemoryUsers(u)
	dedup, mr := newDeduper(t)
	adapter := &scriptedAdapter{next: fakeEvent{id: "evt_1", effect: Grant, lookup: UserLookup{UserID: u.ID}}}
	ing := NewIngester[fakeEvent](adapter, users, dedup)
	ctx := context.Background()

	outcome, err := ing.Ingest(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.True(t, mr.Exists(dedupKey("fake", "evt_1")))
	assert.Equal(t, 72*time.Hour, mr.TTL(dedupKey("fake", "evt_1")))

	outcome, err = ing.Ingest(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, users.applied)
}

func TestIngest_FailedApplyIsNotMarked(t *testing.T) {
	u := &user.User{ID: uuid.New()}
	users := newMemoryUsers(u)
	users.applyErr = errors.New("connection reset")
	dedup, mr := newDeduper(t)
	ing := NewIngester[fakeEvent](&scriptedAdapter{next: fakeEvent{id: "evt_2", effect: Grant, lookup: UserLookup{UserID: u.ID}}}, users, dedup)

	outcome, err := ing.Ingest(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, mr.Exists(dedupKey("fake", "evt_2")))

	// the vendor retry goes through once storage recovers
	users.applyErr = nil
	outcome, err = ing.Ingest(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}

func TestIngest_DedupUnavailableFailsOpen(t *testing.T) {
	u := &user.User{ID: uuid.New()}
	users := newMemoryUsers(u)
	dedup, mr := newDeduper(t)
	mr.Close()

	ing := NewIngester[fakeEvent](&scriptedAdapter{next: fakeEvent{id: "evt_3", effect: Grant, lookup: UserLookup{UserID: u.ID}}}, users, dedup)
	outcome, err := ing.Ingest(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.True(t, users.get(u.ID).SubscriptionActive)
}
