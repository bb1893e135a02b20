package services

import (
	"errors"
	"sync"

	"tip-ledger/internal/ledger"
)

var ErrClientNotFound = errors.New("websocket client not found")

// accountFields are the event data fields that name a participant.
var accountFields = []string{"account_id", "sender_id", "receiver_id", "service_account"}

// SubscriptionFilter narrows the events a client receives. Empty lists match
// everything.
type SubscriptionFilter struct {
	Events   []string `json:"events,omitempty"`
	Accounts []string `json:"accounts,omitempty"` // NEAR accounts or service keys like telegram:42
}

// Matches reports whether e passes the filter.
func (f SubscriptionFilter) Matches(e ledger.Event) bool {
	if len(f.Events) > 0 && !contains(f.Events, e.Event) {
		return false
	}
	if len(f.Accounts) == 0 {
		return true
	}
	for _, data := range e.Data {
		for _, field := range accountFields {
			if v, ok := data[field]; ok && contains(f.Accounts, v) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// WebSocketSubscriptionManager keeps the filter of every connected client.
type WebSocketSubscriptionManager struct {
	mu      sync.RWMutex
	filters map[string]SubscriptionFilter
}

func NewWebSocketSubscriptionManager() *WebSocketSubscriptionManager {
	return &WebSocketSubscriptionManager{filters: make(map[string]SubscriptionFilter)}
}

// RegisterClient 注册客户端，初始过滤器可以为空
func (m *WebSocketSubscriptionManager) RegisterClient(clientID string, filter SubscriptionFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[clientID] = filter
}

func (m *WebSocketSubscriptionManager) UnregisterClient(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.filters, clientID)
}

// Subscribe replaces the filter of a registered client.
func (m *WebSocketSubscriptionManager) Subscribe(clientID string, filter SubscriptionFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.filters[clientID]; !ok {
		return ErrClientNotFound
	}
	m.filters[clientID] = filter
	return nil
}

// Matches reports whether clientID should receive e.
func (m *WebSocketSubscriptionManager) Matches(clientID string, e ledger.Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filter, ok := m.filters[clientID]
	return ok && filter.Matches(e)
}

func (m *WebSocketSubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filters)
}
