package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Contact is the authorization contract's view of an external identity.
type Contact struct {
	Category  string  `json:"category"` // Telegram, Twitter, Github, Discord, Email, ...
	Value     string  `json:"value"`
	AccountID *uint64 `json:"account_id,omitempty"`
}

// ContactFor converts a service account into the contract's contact shape.
func ContactFor(svc ledger.ServiceAccount) Contact {
	switch svc.Service {
	case ledger.ServiceTelegram:
		id := svc.ID
		return Contact{Category: "Telegram", Value: fmt.Sprintf("%d", svc.ID), AccountID: &id}
	case ledger.ServiceTwitter:
		return Contact{Category: "Twitter", Value: svc.Handle}
	case ledger.ServiceGitHub:
		return Contact{Category: "Github", Value: svc.Handle}
	case ledger.ServiceDiscord:
		return Contact{Category: "Discord", Value: svc.Handle}
	}
	return Contact{Category: string(svc.Service), Value: svc.Handle}
}

// ServiceAccount maps a contact back to a ledger identity. Categories the
// ledger does not tip (email, forum, facebook) report false.
func (c Contact) ServiceAccount() (ledger.ServiceAccount, bool) {
	var acc ledger.ServiceAccount
	switch c.Category {
	case "Telegram":
		if c.AccountID == nil {
			return ledger.ServiceAccount{}, false
		}
		acc = ledger.TelegramAccount(*c.AccountID)
	case "Twitter":
		acc = ledger.HandleAccount(ledger.ServiceTwitter, c.Value)
	case "Github":
		acc = ledger.HandleAccount(ledger.ServiceGitHub, c.Value)
	case "Discord":
		acc = ledger.HandleAccount(ledger.ServiceDiscord, c.Value)
	default:
		return ledger.ServiceAccount{}, false
	}
	return acc, acc.Verify() == nil
}

// NEARClient performs view calls against a NEAR RPC node.
type NEARClient struct {
	client       *resty.Client
	authContract string
}

func NewNEARClient(cfg config.NEARConfig) *NEARClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.RPCURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &NEARClient{client: client, authContract: cfg.AuthContract}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Name    string          `json:"name"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcResponse struct {
	Result *struct {
		Result []int    `json:"result"`
		Logs   []string `json:"logs"`
		Error  string   `json:"error"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// CallFunction runs a view method and decodes its JSON return value into out.
func (c *NEARClient) CallFunction(ctx context.Context, contract, method string, args, out interface{}) error {
	start := time.Now()
	defer func() { metrics.AuthResolverDuration.Observe(time.Since(start).Seconds()) }()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "query",
		Params: map[string]string{
			"request_type": "call_function",
			"finality":     "final",
			"account_id":   contract,
			"method_name":  method,
			"args_base64":  base64.StdEncoding.EncodeToString(argsJSON),
		},
	}

	var rpcResp rpcResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&rpcResp).
		Post("")
	if err != nil {
		return fmt.Errorf("near rpc %s.%s: %w", contract, method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("near rpc %s.%s failed with status: %s", contract, method, resp.Status())
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("near rpc %s.%s: %s (%d) %s", contract, method, rpcResp.Error.Name, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return fmt.Errorf("near rpc %s.%s: empty result", contract, method)
	}
	if rpcResp.Result.Error != "" {
		return fmt.Errorf("near rpc %s.%s: %s", contract, method, rpcResp.Result.Error)
	}

	raw := make([]byte, len(rpcResp.Result.Result))
	for i, b := range rpcResp.Result.Result {
		raw[i] = byte(b)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s.%s result: %w", contract, method, err)
	}
	return nil
}

// ContactOwner returns the NEAR account that verified contact, or "" when
// nobody did. The contract answers either with an optional account id or a
// list of ids; a list resolves to its first entry.
func (c *NEARClient) ContactOwner(ctx context.Context, svc ledger.ServiceAccount) (string, error) {
	var raw json.RawMessage
	err := c.CallFunction(ctx, c.authContract, "get_account_for_contact", map[string]interface{}{
		"contact": ContactFor(svc),
	}, &raw)
	metrics.AuthResolverCalls.WithLabelValues("contact_owner", metrics.Result(err)).Inc()
	if err != nil {
		return "", err
	}
	return decodeOwner(raw)
}

func decodeOwner(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", fmt.Errorf("unexpected contact owner payload: %s", string(raw))
	}
	if len(list) == 0 {
		return "", nil
	}
	return list[0], nil
}

// Contacts returns the verified contacts of account. A missing record is an
// empty list.
func (c *NEARClient) Contacts(ctx context.Context, account string) ([]ledger.ServiceAccount, error) {
	var contacts []Contact
	err := c.CallFunction(ctx, c.authContract, "get_contacts", map[string]string{"account_id": account}, &contacts)
	metrics.AuthResolverCalls.WithLabelValues("contacts", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	out := make([]ledger.ServiceAccount, 0, len(contacts))
	for _, contact := range contacts {
		if acc, ok := contact.ServiceAccount(); ok {
			out = append(out, acc)
		}
	}
	return out, nil
}
