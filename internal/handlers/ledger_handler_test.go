package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner    = "owner.near"
	testOperator = "operator.near"
	testAlice    = "alice.near"
	testBob      = "bob.near"
)

type captureDispatcher struct {
	mu   sync.Mutex
	reqs []ledger.Request
}

func (d *captureDispatcher) Dispatch(_ context.Context, r ledger.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, r)
	return nil
}

type testServer struct {
	t      *testing.T
	ledger *ledger.Ledger
	disp   *captureDispatcher
	engine *gin.Engine
	seq    int
}

// asCaller stands in for the JWT middleware: the X-Test-* headers carry the
// identity the token would have carried.
func asCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if account := c.GetHeader("X-Test-Account"); account != "" {
			c.Set("account", account)
		}
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{t: t, disp: &captureDispatcher{}}
	cfg := ledger.Config{
		Owner:               testOwner,
		Operator:            testOperator,
		TreasuryFee:         ledger.FeeFraction{Numerator: 1, Denominator: 10},
		ServiceFee:          ledger.FeeFraction{Numerator: 1, Denominator: 100},
		TipAvailable:        true,
		WithdrawAvailable:   true,
		RewardToken:         ledger.FungibleToken("tiptoken.near"),
		WrappedNative:       ledger.FungibleToken("wrap.near"),
		ChatRewardThreshold: ledger.DefaultChatRewardThreshold,
		MaxDistribution:     ledger.DefaultMaxDistribution,
	}
	var err error
	s.ledger, err = ledger.New(context.Background(), ledger.NewMemoryStore(), s.disp, cfg,
		ledger.WithIDGenerator(func() string {
			s.seq++
			return fmt.Sprintf("req-%03d", s.seq)
		}))
	require.NoError(t, err)
	require.NoError(t, s.ledger.WhitelistToken(context.Background(), testOwner, ledger.NativeToken(), ledger.WhitelistedToken{
		TipsAvailable: true, MinDeposit: ledger.NewAmount(1),
	}))

	h := NewLedgerHandler(s.ledger)
	r := gin.New()
	api := r.Group("/api/v1", asCaller())
	api.GET("/accounts/:account/deposits", h.GetDepositsHandler)
	api.GET("/treasury/:token", h.GetTreasuryHandler)
	api.GET("/chats/:chat", h.GetChatHandler)
	api.GET("/settlement/:id", h.GetRequestHandler)
	api.POST("/deposits", h.DepositHandler)
	api.POST("/tips", h.TipHandler)
	api.POST("/withdrawals", h.WithdrawHandler)
	api.POST("/settlement/:id/outcome", h.SettlementOutcomeHandler)
	api.POST("/admin/tip-available", h.SetTipAvailableHandler)
	api.PUT("/admin/chats/:chat", h.SetChatSettingsHandler)
	s.engine = r
	return s
}

func (s *testServer) do(method, path, account, role string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set("X-Test-Account", account)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (s *testServer) deposit(account string, amount string) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/v1/deposits", "relayer-1", dto.RoleRelayer, dto.DepositRequest{
		Account: account, Token: "native", Amount: amount,
	})
	require.Equal(s.t, http.StatusOK, code, body)
}

// balance returns the native deposit of account in decimal.
func (s *testServer) balance(account string) string {
	bal := s.ledger.DepositOf(account, ledger.NativeToken())
	return bal.Dec()
}

func TestDepositHandlerCreditsAccount(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/v1/deposits", "relayer-1", dto.RoleRelayer, dto.DepositRequest{
		Account: testAlice, Token: "near", Amount: "100",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "native", body["token"])
	assert.Equal(t, "100", body["balance"])

	code, body = s.do(http.MethodGet, "/api/v1/accounts/"+testAlice+"/deposits", "", "", nil)
	require.Equal(t, http.StatusOK, code)
	deposits := body["deposits"].([]interface{})
	require.Len(t, deposits, 1)
	assert.Equal(t, "100", deposits[0].(map[string]interface{})["amount"])
}

func TestDepositHandlerRejectsUsers(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/v1/deposits", testAlice, dto.RoleUser, dto.DepositRequest{
		Account: testAlice, Token: "native", Amount: "100",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ACCESS_DENIED", body["code"])
	assert.Equal(t, "0", s.balance(testAlice))
}

func TestOnlyRelayerRoleActsAsLedger(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "50")
	code, body := s.do(http.MethodPost, "/api/v1/withdrawals", testAlice, dto.RoleUser, dto.TokenAmountRequest{Token: "native"})
	require.Equal(t, http.StatusAccepted, code, body)
	id := body["request"].(map[string]interface{})["id"].(string)

	for _, account := range []string{"self", ledger.SelfPrincipal} {
		code, body = s.do(http.MethodPost, "/api/v1/deposits", account, dto.RoleUser, dto.DepositRequest{
			Account: testBob, Token: "native", Amount: "1000000",
		})
		assert.Equal(t, http.StatusForbidden, code, account)
		assert.Equal(t, "ACCESS_DENIED", body["code"], account)

		code, _ = s.do(http.MethodPost, "/api/v1/settlement/"+id+"/outcome", account, dto.RoleUser,
			dto.SettlementOutcomeMessage{Success: false, Error: "forged"})
		assert.Equal(t, http.StatusForbidden, code, account)
	}
	assert.Equal(t, "0", s.balance(testBob))

	req, found := s.ledger.RequestByID(id)
	require.True(t, found)
	assert.Equal(t, ledger.StatusPending, req.Status)
}

func TestTipHandlerMovesBalance(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "100")

	code, body := s.do(http.MethodPost, "/api/v1/tips", testAlice, dto.RoleUser, dto.TipRequest{
		ReceiverAccount: testBob, Token: "native", Amount: "30",
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "3", body["fee"])
	assert.Equal(t, "27", body["net"])

	assert.Equal(t, "70", s.balance(testAlice))
	assert.Equal(t, "27", s.balance(testBob))

	code, body = s.do(http.MethodGet, "/api/v1/treasury/native", "", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3", body["treasury"])
}

func TestTipHandlerErrorCodes(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "10")

	tests := []struct {
		name   string
		req    dto.TipRequest
		status int
		code   string
	}{
		{"insufficient balance", dto.TipRequest{ReceiverAccount: testBob, Token: "native", Amount: "11"}, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"unknown token", dto.TipRequest{ReceiverAccount: testBob, Token: "usdc.near", Amount: "5"}, http.StatusUnprocessableEntity, "TOKEN_NOT_WHITELISTED"},
		{"bad amount", dto.TipRequest{ReceiverAccount: testBob, Token: "native", Amount: "five"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"no receiver", dto.TipRequest{Token: "native", Amount: "5"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(http.MethodPost, "/api/v1/tips", testAlice, dto.RoleUser, tt.req)
			assert.Equal(t, tt.status, code, body)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, false, body["success"])
		})
	}
	assert.Equal(t, "10", s.balance(testAlice))
}

func TestTipHandlerPaused(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "100")

	code, _ := s.do(http.MethodPost, "/api/v1/admin/tip-available", testOwner, dto.RoleOwner, gin.H{"available": false})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(http.MethodPost, "/api/v1/tips", testAlice, dto.RoleUser, dto.TipRequest{
		ReceiverAccount: testBob, Token: "native", Amount: "30",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUBSYSTEM_PAUSED", body["code"])
}

func TestAdminHandlersRequireOwner(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPut, "/api/v1/admin/chats/-100", testAlice, dto.RoleUser, dto.ChatSettingsDTO{
		Admin: testAlice, FeePercent: 5,
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	code, _ = s.do(http.MethodGet, "/api/v1/chats/-100", "", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPut, "/api/v1/admin/chats/-100", testOwner, dto.RoleOwner, dto.ChatSettingsDTO{
		Admin: testAlice, FeePercent: 5, TrackPoints: true,
	})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(http.MethodGet, "/api/v1/chats/-100", "", "", nil)
	require.Equal(t, http.StatusOK, code)
	settings := body["settings"].(map[string]interface{})
	assert.Equal(t, testAlice, settings["admin"])
	assert.EqualValues(t, 5, settings["fee_percent"])
}

func TestWithdrawAndOutcomeCallback(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "100")

	code, body := s.do(http.MethodPost, "/api/v1/withdrawals", testAlice, dto.RoleUser, dto.TokenAmountRequest{
		Token: "native", Amount: "40",
	})
	require.Equal(t, http.StatusAccepted, code, body)
	req := body["request"].(map[string]interface{})
	id := req["id"].(string)
	assert.Equal(t, "pending", req["status"])
	assert.Equal(t, "40", req["amount"])
	assert.Equal(t, "60", s.balance(testAlice))
	require.Len(t, s.disp.reqs, 1)

	// users may not report outcomes
	code, body = s.do(http.MethodPost, "/api/v1/settlement/"+id+"/outcome", testAlice, dto.RoleUser, dto.SettlementOutcomeMessage{Success: true})
	assert.Equal(t, http.StatusForbidden, code, body)

	code, body = s.do(http.MethodPost, "/api/v1/settlement/"+id+"/outcome", "relayer-1", dto.RoleRelayer, dto.SettlementOutcomeMessage{Success: true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "settled", body["request"].(map[string]interface{})["status"])

	code, body = s.do(http.MethodPost, "/api/v1/settlement/"+id+"/outcome", "relayer-1", dto.RoleRelayer, dto.SettlementOutcomeMessage{Success: true})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_RECONCILED", body["code"])

	code, body = s.do(http.MethodGet, "/api/v1/settlement/missing", "", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "UNKNOWN_REQUEST", body["code"])
}

func TestNativeWithdrawFailureIsRecorded(t *testing.T) {
	s := newTestServer(t)
	s.deposit(testAlice, "100")

	code, body := s.do(http.MethodPost, "/api/v1/withdrawals", testAlice, dto.RoleUser, dto.TokenAmountRequest{Token: "native"})
	require.Equal(t, http.StatusAccepted, code, body)
	id := body["request"].(map[string]interface{})["id"].(string)
	assert.Equal(t, "0", s.balance(testAlice))

	code, body = s.do(http.MethodPost, "/api/v1/settlement/"+id+"/outcome", "relayer-1", dto.RoleRelayer,
		dto.SettlementOutcomeMessage{Success: false, Error: "receiver missing"})
	require.Equal(t, http.StatusOK, code, body)
	req := body["request"].(map[string]interface{})
	assert.Equal(t, "failed", req["status"])
	assert.Equal(t, "receiver missing", req["failure"])
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ledger.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
		{fmt.Errorf("wrapped: %w", ledger.ErrSwapNotAllowed), http.StatusUnprocessableEntity, "SWAP_NOT_ALLOWED"},
		{ledger.ErrExternalCallFailed, http.StatusBadGateway, "EXTERNAL_CALL_FAILED"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code)
	}
}
