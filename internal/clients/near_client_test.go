package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tip-ledger/internal/config"
	"tip-ledger/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOwner(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`null`, "", false},
		{``, "", false},
		{`"alice.near"`, "alice.near", false},
		{`["alice.near","bob.near"]`, "alice.near", false},
		{`[]`, "", false},
		{`{"owner":"alice.near"}`, "", true},
	}
	for _, tt := range tests {
		got, err := decodeOwner(json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestContactMapping(t *testing.T) {
	accounts := []ledger.ServiceAccount{
		ledger.TelegramAccount(42),
		ledger.HandleAccount(ledger.ServiceTwitter, "alice"),
		ledger.HandleAccount(ledger.ServiceGitHub, "alice-gh"),
		ledger.HandleAccount(ledger.ServiceDiscord, "alice#1"),
	}
	for _, svc := range accounts {
		contact := ContactFor(svc)
		back, ok := contact.ServiceAccount()
		require.True(t, ok, svc.Key())
		assert.True(t, ledger.SameIdentity(svc, back), svc.Key())
	}

	tg := ContactFor(ledger.TelegramAccount(42))
	assert.Equal(t, "Telegram", tg.Category)
	assert.Equal(t, "42", tg.Value)
	require.NotNil(t, tg.AccountID)
	assert.EqualValues(t, 42, *tg.AccountID)

	_, ok := Contact{Category: "Email", Value: "a@b.c"}.ServiceAccount()
	assert.False(t, ok)
	_, ok = Contact{Category: "Telegram", Value: "someone"}.ServiceAccount()
	assert.False(t, ok, "telegram contact without numeric id")
}

// rpcServer answers every view call with result, encoded the way NEAR RPC
// returns function call output.
func rpcServer(t *testing.T, wantMethod string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params map[string]string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "query", req.Method)
		assert.Equal(t, "call_function", req.Params["request_type"])
		assert.Equal(t, "auth.near", req.Params["account_id"])
		assert.Equal(t, wantMethod, req.Params["method_name"])
		_, err := base64.StdEncoding.DecodeString(req.Params["args_base64"])
		assert.NoError(t, err)

		payload, err := json.Marshal(result)
		require.NoError(t, err)
		ints := make([]int, len(payload))
		for i, b := range payload {
			ints[i] = int(b)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      "1",
			"result":  map[string]interface{}{"result": ints, "logs": []string{}},
		})
	}))
}

func TestNEARClientContactOwner(t *testing.T) {
	srv := rpcServer(t, "get_account_for_contact", "alice.near")
	defer srv.Close()

	c := NewNEARClient(config.NEARConfig{RPCURL: srv.URL, AuthContract: "auth.near", Timeout: 5})
	owner, err := c.ContactOwner(context.Background(), ledger.TelegramAccount(42))
	require.NoError(t, err)
	assert.Equal(t, "alice.near", owner)
}

func TestNEARClientContacts(t *testing.T) {
	id := uint64(7)
	srv := rpcServer(t, "get_contacts", []Contact{
		{Category: "Telegram", Value: "7", AccountID: &id},
		{Category: "Email", Value: "bob@example.com"},
		{Category: "Twitter", Value: "bob"},
	})
	defer srv.Close()

	c := NewNEARClient(config.NEARConfig{RPCURL: srv.URL, AuthContract: "auth.near", Timeout: 5})
	contacts, err := c.Contacts(context.Background(), "bob.near")
	require.NoError(t, err)
	assert.Equal(t, []ledger.ServiceAccount{
		ledger.TelegramAccount(7),
		ledger.HandleAccount(ledger.ServiceTwitter, "bob"),
	}, contacts)
}

func TestNEARClientRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","error":{"name":"HANDLER_ERROR","code":-32000,"message":"Server error"}}`))
	}))
	defer srv.Close()

	c := NewNEARClient(config.NEARConfig{RPCURL: srv.URL, AuthContract: "auth.near", Timeout: 5})
	_, err := c.ContactOwner(context.Background(), ledger.TelegramAccount(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HANDLER_ERROR")
}
