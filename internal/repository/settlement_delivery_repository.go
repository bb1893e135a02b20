package repository

import (
	"context"
	"errors"
	"time"

	"tip-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementDeliveryRepository tracks redelivery attempts of pending requests.
type SettlementDeliveryRepository interface {
	Get(ctx context.Context, requestID string) (*models.SettlementDelivery, error)
	Save(ctx context.Context, d *models.SettlementDelivery) error
	Delete(ctx context.Context, requestIDs ...string) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]*models.SettlementDelivery, error)
}

type settlementDeliveryRepository struct {
	db *gorm.DB
}

func NewSettlementDeliveryRepository(db *gorm.DB) SettlementDeliveryRepository {
	return &settlementDeliveryRepository{db: db}
}

// Get returns (nil, nil) when the request was never redelivered.
func (r *settlementDeliveryRepository) Get(ctx context.Context, requestID string) (*models.SettlementDelivery, error) {
	var d models.SettlementDelivery
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *settlementDeliveryRepository) Save(ctx context.Context, d *models.SettlementDelivery) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(d).Error
}

func (r *settlementDeliveryRepository) Delete(ctx context.Context, requestIDs ...string) error {
	if len(requestIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("request_id IN ?", requestIDs).Delete(&models.SettlementDelivery{}).Error
}

func (r *settlementDeliveryRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.SettlementDelivery, error) {
	var ds []*models.SettlementDelivery
	query := r.db.WithContext(ctx).Where("next_attempt_at <= ?", now).Order("next_attempt_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}
