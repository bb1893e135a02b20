// Package snapshot exports the full ledger state as a CBOR document, used as
// the one-time ETL format when moving a ledger between deployments.
package snapshot

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"

	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
)

const Version = 1

type TokenRow struct {
	Token  string             `cbor:"token"`
	Params dto.TokenParamsDTO `cbor:"params"`
}

type ChatRow struct {
	Chat     int64               `cbor:"chat"`
	Settings dto.ChatSettingsDTO `cbor:"settings"`
}

type ChatPointsRow struct {
	Chat   int64  `cbor:"chat"`
	Points uint32 `cbor:"points"`
}

type BalanceRow struct {
	Kind      string `cbor:"kind"`
	Principal string `cbor:"principal,omitempty"`
	Token     string `cbor:"token"`
	Amount    string `cbor:"amount"`
}

type LinkRow struct {
	ServiceAccount string `cbor:"service_account"`
	Account        string `cbor:"account"`
}

type RewardFlagRow struct {
	Account string `cbor:"account"`
	Chat    int64  `cbor:"chat"`
}

// Snapshot 账本全量快照
type Snapshot struct {
	Version     int                             `cbor:"version"`
	ExportedAt  time.Time                       `cbor:"exported_at"`
	Config      *dto.ConfigDTO                  `cbor:"config,omitempty"`
	Tokens      []TokenRow                      `cbor:"tokens"`
	Chats       []ChatRow                       `cbor:"chats"`
	ChatPoints  []ChatPointsRow                 `cbor:"chat_points"`
	Balances    []BalanceRow                    `cbor:"balances"`
	Links       []LinkRow                       `cbor:"links"`
	RewardFlags []RewardFlagRow                 `cbor:"reward_flags"`
	Requests    []*dto.SettlementRequestMessage `cbor:"requests"`
}

// Build converts a full state load into a snapshot. Zero balances and
// removed rows are skipped.
func Build(cs *ledger.Changeset, now time.Time) *Snapshot {
	s := &Snapshot{Version: Version, ExportedAt: now.UTC()}
	if cs.Config != nil {
		cfg := dto.ConfigFromLedger(*cs.Config)
		s.Config = &cfg
	}
	for _, t := range cs.Tokens {
		if t.Removed {
			continue
		}
		s.Tokens = append(s.Tokens, TokenRow{Token: t.Token.String(), Params: dto.TokenParamsFromLedger(t.Params)})
	}
	for _, c := range cs.Chats {
		if c.Removed {
			continue
		}
		s.Chats = append(s.Chats, ChatRow{Chat: c.Chat, Settings: dto.ChatSettingsFromLedger(c.Settings)})
	}
	for _, p := range cs.ChatPoints {
		s.ChatPoints = append(s.ChatPoints, ChatPointsRow{Chat: p.Chat, Points: p.Points})
	}
	for _, b := range cs.Balances {
		if b.Amount.IsZero() {
			continue
		}
		s.Balances = append(s.Balances, BalanceRow{
			Kind:      string(b.Key.Kind),
			Principal: b.Key.Principal,
			Token:     b.Key.Token.String(),
			Amount:    b.Amount.Dec(),
		})
	}
	for _, l := range cs.Links {
		if l.Removed {
			continue
		}
		s.Links = append(s.Links, LinkRow{ServiceAccount: l.Service.Key(), Account: l.Account})
	}
	for _, f := range cs.RewardFlags {
		s.RewardFlags = append(s.RewardFlags, RewardFlagRow{Account: f.Account, Chat: f.Chat})
	}
	for _, r := range cs.Requests {
		s.Requests = append(s.Requests, dto.RequestMessage(r))
	}

	sort.Slice(s.Balances, func(i, j int) bool {
		a, b := s.Balances[i], s.Balances[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Token != b.Token {
			return a.Token < b.Token
		}
		return a.Principal < b.Principal
	})
	sort.Slice(s.Requests, func(i, j int) bool { return s.Requests[i].CreatedAt.Before(s.Requests[j].CreatedAt) })
	return s
}

// Encode writes s in canonical CBOR.
func Encode(w io.Writer, s *Snapshot) error {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return err
	}
	return em.NewEncoder(w).Encode(s)
}

func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// Summary renders row counts and per-token deposit totals for humans.
func Summary(s *Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot v%d exported %s\n", s.Version, humanize.Time(s.ExportedAt))
	fmt.Fprintf(&b, "  tokens:       %s\n", humanize.Comma(int64(len(s.Tokens))))
	fmt.Fprintf(&b, "  chats:        %s\n", humanize.Comma(int64(len(s.Chats))))
	fmt.Fprintf(&b, "  balances:     %s\n", humanize.Comma(int64(len(s.Balances))))
	fmt.Fprintf(&b, "  links:        %s\n", humanize.Comma(int64(len(s.Links))))
	fmt.Fprintf(&b, "  reward flags: %s\n", humanize.Comma(int64(len(s.RewardFlags))))

	pending := 0
	for _, r := range s.Requests {
		if r.Status == string(ledger.StatusPending) {
			pending++
		}
	}
	fmt.Fprintf(&b, "  requests:     %s (%s pending)\n", humanize.Comma(int64(len(s.Requests))), humanize.Comma(int64(pending)))

	totals := DepositTotals(s)
	tokens := make([]string, 0, len(totals))
	for t := range totals {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	for _, t := range tokens {
		v := totals[t]
		fmt.Fprintf(&b, "  deposits[%s]: %s\n", t, humanize.BigComma(v.ToBig()))
	}
	return b.String()
}

// DepositTotals sums deposit rows per token.
func DepositTotals(s *Snapshot) map[string]ledger.Amount {
	out := make(map[string]ledger.Amount)
	for _, row := range s.Balances {
		if row.Kind != string(ledger.BalanceDeposit) {
			continue
		}
		v, err := ledger.ParseAmount(row.Amount)
		if err != nil {
			continue
		}
		sum := out[row.Token]
		sum.Add(&sum, &v)
		out[row.Token] = sum
	}
	return out
}
