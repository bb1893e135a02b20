package services

import (
	"context"
	"fmt"
	"html"
	"log"

	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/dustin/go-humanize"
)

// MessageSender delivers a direct message to a Telegram user.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// LinkLookup resolves the service accounts linked to a NEAR account.
type LinkLookup interface {
	ServiceAccountsOf(account string) []ledger.ServiceAccount
}

// TipNotifier DMs Telegram users when they receive a tip.
type TipNotifier struct {
	sender MessageSender
	links  LinkLookup
}

func NewTipNotifier(sender MessageSender, links LinkLookup) *TipNotifier {
	return &TipNotifier{sender: sender, links: links}
}

// HandleEvent reacts to tip events only.
func (n *TipNotifier) HandleEvent(ctx context.Context, e ledger.Event) {
	if e.Event != ledger.EventTip {
		return
	}
	chatID, ok := n.recipient(e.Field("receiver_id"))
	if !ok {
		return
	}

	err := n.sender.SendMessage(ctx, chatID, FormatTipMessage(e))
	metrics.NotificationsSent.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		log.Printf("❌ [Notifier] Send tip notification to %d failed: %v", chatID, err)
	}
}

// recipient finds the Telegram user behind a tip receiver, which is either a
// service key such as telegram:42 or a NEAR account with a linked Telegram.
func (n *TipNotifier) recipient(receiver string) (int64, bool) {
	if receiver == "" {
		return 0, false
	}
	if svc, err := ledger.ParseServiceAccountKey(receiver); err == nil {
		if svc.Service == ledger.ServiceTelegram {
			return int64(svc.ID), true
		}
		return 0, false
	}
	if n.links == nil {
		return 0, false
	}
	for _, svc := range n.links.ServiceAccountsOf(receiver) {
		if svc.Service == ledger.ServiceTelegram {
			return int64(svc.ID), true
		}
	}
	return 0, false
}

// FormatTipMessage renders the notification text of a tip event.
func FormatTipMessage(e ledger.Event) string {
	amount := e.Field("amount")
	fee := e.Field("fee")
	if v, err := ledger.ParseAmount(amount); err == nil {
		if f, err := ledger.ParseAmount(fee); err == nil {
			net := v.Clone()
			net.Sub(net, &f)
			amount = humanize.BigComma(net.ToBig())
		}
	}

	text := fmt.Sprintf("💸 <b>%s</b> tipped you <b>%s</b> %s",
		html.EscapeString(e.Field("sender_id")),
		amount,
		html.EscapeString(e.Field("token_id")))
	if chat := e.Field("chat_id"); chat != "" {
		text += fmt.Sprintf(" in chat <code>%s</code>", html.EscapeString(chat))
	}
	return text
}
