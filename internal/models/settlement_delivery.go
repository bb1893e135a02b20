package models

import (
	"time"
)

// SettlementDelivery tracks how often a pending settlement request has been
// handed to the relayer bus.
type SettlementDelivery struct {
	RequestID     string    `json:"request_id" gorm:"primaryKey;size:64"`
	Attempts      int       `json:"attempts" gorm:"default:0"`
	NextAttemptAt time.Time `json:"next_attempt_at" gorm:"index"`
	LastError     string    `json:"last_error" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// 退避：base、2*base、4*base ... 上限 maxDelay
func (d *SettlementDelivery) CalculateNextAttemptTime(now time.Time, base, maxDelay time.Duration) time.Time {
	shift := d.Attempts
	if shift > 16 {
		shift = 16
	}
	delay := base * time.Duration(1<<uint(shift))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return now.Add(delay)
}

// Due reports whether another delivery attempt may be made.
func (d *SettlementDelivery) Due(now time.Time) bool {
	return !now.Before(d.NextAttemptAt)
}

// RecordAttempt 记录一次投递并计算下次时间
func (d *SettlementDelivery) RecordAttempt(now time.Time, base, maxDelay time.Duration, deliveryErr error) {
	d.Attempts++
	d.LastError = ""
	if deliveryErr != nil {
		d.LastError = deliveryErr.Error()
	}
	d.NextAttemptAt = d.CalculateNextAttemptTime(now, base, maxDelay)
}
