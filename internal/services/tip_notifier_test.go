package services

import (
	"context"
	"testing"

	"tip-ledger/internal/ledger"

	"github.com/stretchr/testify/assert"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type fakeLinks map[string][]ledger.ServiceAccount

func (f fakeLinks) ServiceAccountsOf(account string) []ledger.ServiceAccount {
	return f[account]
}

func tipEvent(receiver string) ledger.Event {
	return ledger.Event{
		Standard: ledger.EventStandard,
		Version:  ledger.EventVersion,
		Event:    ledger.EventTip,
		Data: []map[string]string{{
			"sender_id":   "alice.near",
			"receiver_id": receiver,
			"token_id":    "native",
			"amount":      "1000000",
			"fee":         "100000",
		}},
	}
}

func TestFormatTipMessage(t *testing.T) {
	assert.Equal(t, "💸 <b>alice.near</b> tipped you <b>900,000</b> native", FormatTipMessage(tipEvent("telegram:42")))

	e := tipEvent("telegram:42")
	e.Data[0]["sender_id"] = "<script>"
	e.Data[0]["chat_id"] = "-100123"
	assert.Equal(t, "💸 <b>&lt;script&gt;</b> tipped you <b>900,000</b> native in chat <code>-100123</code>", FormatTipMessage(e))
}

func TestTipNotifierRecipients(t *testing.T) {
	links := fakeLinks{
		"bob.near":   {ledger.HandleAccount(ledger.ServiceGitHub, "bob"), ledger.TelegramAccount(7)},
		"carol.near": {ledger.HandleAccount(ledger.ServiceTwitter, "carol")},
	}

	tests := []struct {
		name     string
		receiver string
		chatID   int64
		sent     bool
	}{
		{"telegram service account", "telegram:42", 42, true},
		{"linked near account", "bob.near", 7, true},
		{"no telegram link", "carol.near", 0, false},
		{"twitter service account", "twitter:dave", 0, false},
		{"empty receiver", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			NewTipNotifier(sender, links).HandleEvent(context.Background(), tipEvent(tt.receiver))
			if !tt.sent {
				assert.Empty(t, sender.sent)
				return
			}
			if assert.Len(t, sender.sent, 1) {
				assert.Equal(t, tt.chatID, sender.sent[0].chatID)
			}
		})
	}
}

func TestTipNotifierIgnoresOtherEvents(t *testing.T) {
	sender := &fakeSender{}
	e := tipEvent("telegram:42")
	e.Event = ledger.EventDeposit
	NewTipNotifier(sender, nil).HandleEvent(context.Background(), e)
	assert.Empty(t, sender.sent)
}
