package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// memoryUsers mimics the conditional update of user.Repository.
type memoryUsers struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*user.User
	eventAt  map[uuid.UUID]map[user.BillingSource]time.Time
	applyErr error
	applied  int
}

func newMemoryUsers(users ...*user.User) *memoryUsers {
	m := &memoryUsers{
		users:   map[uuid.UUID]*user.User{},
		eventAt: map[uuid.UUID]map[user.BillingSource]time.Time{},
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) FindByBillingRef(_ context.Context, subscriptionID, customerID string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subscriptionID != "" {
		for _, u := range m.users {
			if u.BillingSubscriptionID == subscriptionID {
				cp := *u
				return &cp, nil
			}
		}
	}
	if customerID != "" {
		for _, u := range m.users {
			if u.BillingCustomerID == customerID {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, user.ErrNotFound
}

func (m *memoryUsers) ApplyBillingChange(_ context.Context, userID uuid.UUID, c user.BillingChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return false, m.applyErr
	}
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	if !c.EventAt.IsZero() {
		if m.eventAt[userID] == nil {
			m.eventAt[userID] = map[user.BillingSource]time.Time{}
		}
		if last, ok := m.eventAt[userID][c.Source]; ok && last.After(c.EventAt) {
			return false, nil
		}
		m.eventAt[userID][c.Source] = c.EventAt
	}

	u.SubscriptionActive = c.SubscriptionActive
	if c.Source == user.SourceStripe {
		if c.CustomerID != "" {
			u.BillingCustomerID = c.CustomerID
		}
		switch {
		case c.ClearSubscriptionID:
			u.BillingSubscriptionID = ""
		case c.SubscriptionID != "":
			u.BillingSubscriptionID = c.SubscriptionID
		}
	} else if c.CustomerID != "" {
		u.MobileBillingCustomerID = c.CustomerID
	}
	m.applied++
	return true, nil
}

func (m *memoryUsers) get(id uuid.UUID) user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}
