package ledger

// 事件格式
const (
	EventStandard = "tipbot"
	EventVersion  = "1.0.0"
)

const (
	EventInsertServiceAccount       = "insert_service_account"
	EventRemoveServiceAccount       = "remove_service_account"
	EventIncreaseDeposit            = "increase_deposit"
	EventDeposit                    = "deposit"
	EventWithdraw                   = "withdraw"
	EventWithdrawFromServiceAccount = "withdraw_from_service_account"
	EventServiceFeesAdd             = "service_fees_add"
	EventServiceFeesRemove          = "service_fees_remove"
	EventTreasuryAdd                = "treasury_add"
	EventTreasuryRemove             = "treasury_remove"
	EventTip                        = "tip"
	EventRewardTokensMinted         = "reward_tokens_minted"
	EventRedeem                     = "redeem"
)

// Event is a structured ledger notification.
type Event struct {
	Standard string              `json:"standard"`
	Version  string              `json:"version"`
	Event    string              `json:"event"`
	Data     []map[string]string `json:"data"`
}

func newEvent(name string, data map[string]string) Event {
	return Event{Standard: EventStandard, Version: EventVersion, Event: name, Data: []map[string]string{data}}
}

// Field returns a data field of the first entry.
func (e Event) Field(name string) string {
	if len(e.Data) == 0 {
		return ""
	}
	return e.Data[0][name]
}
