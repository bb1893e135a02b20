package repository

import (
	"context"
	"fmt"
	"time"

	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"
	"tip-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository persists ledger state. It implements ledger.Store.
type LedgerRepository interface {
	ledger.Store

	// Query methods
	GetRequest(ctx context.Context, id string) (*models.SettlementRequest, error)
	FindRequestsByStatus(ctx context.Context, status models.SettlementRequestStatus, limit int) ([]*models.SettlementRequest, error)
	CountRequestsByStatus(ctx context.Context) (map[models.SettlementRequestStatus]int64, error)
	FindBalancesByPrincipal(ctx context.Context, principal string) ([]*models.LedgerBalance, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Load reads every ledger row into one snapshot.
func (r *ledgerRepository) Load(ctx context.Context) (*ledger.Changeset, error) {
	db := r.db.WithContext(ctx)
	cs := &ledger.Changeset{}

	var cfgRows []models.LedgerConfig
	if err := db.Where("id = ?", models.LedgerConfigKey).Limit(1).Find(&cfgRows).Error; err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(cfgRows) == 1 {
		cfg, err := configFromRow(&cfgRows[0])
		if err != nil {
			return nil, err
		}
		cs.Config = &cfg
	}

	var tokens []models.WhitelistedToken
	if err := db.Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("load whitelisted tokens: %w", err)
	}
	for i := range tokens {
		tc, err := tokenFromRow(&tokens[i])
		if err != nil {
			return nil, err
		}
		cs.Tokens = append(cs.Tokens, tc)
	}

	var chats []models.ChatSetting
	if err := db.Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("load chat settings: %w", err)
	}
	for _, c := range chats {
		cs.Chats = append(cs.Chats, ledger.ChatChange{
			Chat:     c.ChatID,
			Settings: ledger.ChatSettings{Admin: c.Admin, FeePercent: c.FeePercent, TrackPoints: c.TrackPoints},
		})
	}

	var balances []models.LedgerBalance
	if err := db.Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	for i := range balances {
		b, err := balanceFromRow(&balances[i])
		if err != nil {
			return nil, err
		}
		cs.Balances = append(cs.Balances, b)
	}

	var links []models.ServiceLink
	if err := db.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load service links: %w", err)
	}
	for _, l := range links {
		svc, err := ledger.ParseServiceAccountKey(l.ServiceKey)
		if err != nil {
			return nil, fmt.Errorf("service link %s: %w", l.ServiceKey, err)
		}
		cs.Links = append(cs.Links, ledger.LinkChange{Service: svc, Account: l.Account})
	}

	var points []models.ChatPoint
	if err := db.Find(&points).Error; err != nil {
		return nil, fmt.Errorf("load chat points: %w", err)
	}
	for _, p := range points {
		cs.ChatPoints = append(cs.ChatPoints, ledger.ChatPointsEntry{Chat: p.ChatID, Points: p.Points})
	}

	var flags []models.ChatRewardFlag
	if err := db.Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("load reward flags: %w", err)
	}
	for _, f := range flags {
		cs.RewardFlags = append(cs.RewardFlags, ledger.ChatMember{Account: f.Account, Chat: f.ChatID})
	}

	var requests []models.SettlementRequest
	if err := db.Order("created_at ASC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("load settlement requests: %w", err)
	}
	for i := range requests {
		req, err := RequestFromRow(&requests[i])
		if err != nil {
			return nil, err
		}
		cs.Requests = append(cs.Requests, req)
	}
	return cs, nil
}

// Apply writes one committed changeset inside a database transaction.
func (r *ledgerRepository) Apply(ctx context.Context, cs *ledger.Changeset) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	now := time.Now()
	defer func() { metrics.StoreApplyDuration.Observe(time.Since(now).Seconds()) }()
	upsert := clause.OnConflict{UpdateAll: true}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cs.Config != nil {
			row := configToRow(*cs.Config, now)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save config: %w", err)
			}
		}

		for _, t := range cs.Tokens {
			if t.Removed {
				if err := tx.Where("token = ?", t.Token.String()).Delete(&models.WhitelistedToken{}).Error; err != nil {
					return fmt.Errorf("delete token %s: %w", t.Token, err)
				}
				continue
			}
			row := tokenToRow(t.Token, t.Params, now)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save token %s: %w", t.Token, err)
			}
		}

		for _, c := range cs.Chats {
			if c.Removed {
				if err := tx.Where("chat_id = ?", c.Chat).Delete(&models.ChatSetting{}).Error; err != nil {
					return fmt.Errorf("delete chat %d: %w", c.Chat, err)
				}
				continue
			}
			row := models.ChatSetting{
				ChatID: c.Chat, Admin: c.Settings.Admin, FeePercent: c.Settings.FeePercent,
				TrackPoints: c.Settings.TrackPoints, CreatedAt: now, UpdatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "chat_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"admin", "fee_percent", "track_points", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("save chat %d: %w", c.Chat, err)
			}
		}

		for _, b := range cs.Balances {
			// 余额清零后仍保留记录
			row := balanceToRow(b, now)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save balance %s: %w", b.Key, err)
			}
		}

		for _, l := range cs.Links {
			if l.Removed {
				if err := tx.Where("service_key = ?", l.Service.Key()).Delete(&models.ServiceLink{}).Error; err != nil {
					return fmt.Errorf("delete link %s: %w", l.Service, err)
				}
				continue
			}
			row := models.ServiceLink{
				ServiceKey: l.Service.Key(), Service: string(l.Service.Service), Account: l.Account, CreatedAt: now,
			}
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save link %s: %w", l.Service, err)
			}
		}

		for _, p := range cs.ChatPoints {
			row := models.ChatPoint{ChatID: p.Chat, Points: p.Points, UpdatedAt: now}
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save chat points %d: %w", p.Chat, err)
			}
		}

		for _, f := range cs.RewardFlags {
			row := models.ChatRewardFlag{Account: f.Account, ChatID: f.Chat, CreatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("save reward flag %s/%d: %w", f.Account, f.Chat, err)
			}
		}

		for _, req := range cs.Requests {
			row := RequestToRow(req)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("save request %s: %w", req.ID, err)
			}
		}
		return nil
	})
}

func (r *ledgerRepository) GetRequest(ctx context.Context, id string) (*models.SettlementRequest, error) {
	var req models.SettlementRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ledgerRepository) FindRequestsByStatus(ctx context.Context, status models.SettlementRequestStatus, limit int) ([]*models.SettlementRequest, error) {
	var reqs []*models.SettlementRequest
	query := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *ledgerRepository) CountRequestsByStatus(ctx context.Context) (map[models.SettlementRequestStatus]int64, error) {
	var rows []struct {
		Status models.SettlementRequestStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.SettlementRequest{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.SettlementRequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *ledgerRepository) FindBalancesByPrincipal(ctx context.Context, principal string) ([]*models.LedgerBalance, error) {
	var balances []*models.LedgerBalance
	err := r.db.WithContext(ctx).
		Where("principal = ?", principal).
		Order("kind ASC, token ASC").
		Find(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func configToRow(c ledger.Config, now time.Time) models.LedgerConfig {
	return models.LedgerConfig{
		ID:                   models.LedgerConfigKey,
		Owner:                c.Owner,
		Operator:             c.Operator,
		TreasuryFeeNumerator: c.TreasuryFee.Numerator,
		TreasuryFeeDenom:     c.TreasuryFee.Denominator,
		ServiceFeeNumerator:  c.ServiceFee.Numerator,
		ServiceFeeDenom:      c.ServiceFee.Denominator,
		TipAvailable:         c.TipAvailable,
		WithdrawAvailable:    c.WithdrawAvailable,
		RewardToken:          c.RewardToken.String(),
		WrappedNative:        c.WrappedNative.String(),
		ChatRewardThreshold:  c.ChatRewardThreshold.Dec(),
		MaxDistribution:      c.MaxDistribution.Dec(),
		UpdatedAt:            now,
	}
}

func configFromRow(row *models.LedgerConfig) (ledger.Config, error) {
	reward, err := ledger.ParseTokenID(row.RewardToken)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("config reward token: %w", err)
	}
	wrapped, err := ledger.ParseTokenID(row.WrappedNative)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("config wrapped native: %w", err)
	}
	threshold, err := ledger.ParseAmount(row.ChatRewardThreshold)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("config chat reward threshold: %w", err)
	}
	maxDist, err := ledger.ParseAmount(row.MaxDistribution)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("config max distribution: %w", err)
	}
	return ledger.Config{
		Owner:               row.Owner,
		Operator:            row.Operator,
		TreasuryFee:         ledger.FeeFraction{Numerator: row.TreasuryFeeNumerator, Denominator: row.TreasuryFeeDenom},
		ServiceFee:          ledger.FeeFraction{Numerator: row.ServiceFeeNumerator, Denominator: row.ServiceFeeDenom},
		TipAvailable:        row.TipAvailable,
		WithdrawAvailable:   row.WithdrawAvailable,
		RewardToken:         reward,
		WrappedNative:       wrapped,
		ChatRewardThreshold: threshold,
		MaxDistribution:     maxDist,
	}, nil
}

func tokenToRow(token ledger.TokenID, p ledger.WhitelistedToken, now time.Time) models.WhitelistedToken {
	row := models.WhitelistedToken{
		Token:              token.String(),
		TipsAvailable:      p.TipsAvailable,
		MinDeposit:         p.MinDeposit.Dec(),
		MinTip:             p.MinTip.Dec(),
		WithdrawCommission: p.WithdrawCommission.Dec(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.Swap != nil {
		row.SwapContract = p.Swap.Contract
		row.SwapPoolIDs = poolIDsToArray(p.Swap.PoolIDs)
	}
	return row
}

func tokenFromRow(row *models.WhitelistedToken) (ledger.TokenChange, error) {
	token, err := ledger.ParseTokenID(row.Token)
	if err != nil {
		return ledger.TokenChange{}, err
	}
	var p ledger.WhitelistedToken
	p.TipsAvailable = row.TipsAvailable
	if p.MinDeposit, err = parseStoredAmount(row.MinDeposit); err != nil {
		return ledger.TokenChange{}, fmt.Errorf("token %s min deposit: %w", row.Token, err)
	}
	if p.MinTip, err = parseStoredAmount(row.MinTip); err != nil {
		return ledger.TokenChange{}, fmt.Errorf("token %s min tip: %w", row.Token, err)
	}
	if p.WithdrawCommission, err = parseStoredAmount(row.WithdrawCommission); err != nil {
		return ledger.TokenChange{}, fmt.Errorf("token %s commission: %w", row.Token, err)
	}
	if row.SwapContract != "" {
		p.Swap = &ledger.SwapRoute{Contract: row.SwapContract, PoolIDs: poolIDsFromArray(row.SwapPoolIDs)}
	}
	return ledger.TokenChange{Token: token, Params: p}, nil
}

func balanceToRow(b ledger.BalanceEntry, now time.Time) models.LedgerBalance {
	return models.LedgerBalance{
		Kind:      string(b.Key.Kind),
		Principal: b.Key.Principal,
		Token:     b.Key.Token.String(),
		Amount:    b.Amount.Dec(),
		UpdatedAt: now,
	}
}

func balanceFromRow(row *models.LedgerBalance) (ledger.BalanceEntry, error) {
	token, err := ledger.ParseTokenID(row.Token)
	if err != nil {
		return ledger.BalanceEntry{}, err
	}
	amount, err := ledger.ParseAmount(row.Amount)
	if err != nil {
		return ledger.BalanceEntry{}, fmt.Errorf("balance %s/%s/%s: %w", row.Kind, row.Principal, row.Token, err)
	}
	return ledger.BalanceEntry{
		Key:    ledger.BalanceKey{Kind: ledger.BalanceKind(row.Kind), Principal: row.Principal, Token: token},
		Amount: amount,
	}, nil
}

// RequestToRow converts a ledger request to its database row.
func RequestToRow(req ledger.Request) models.SettlementRequest {
	row := models.SettlementRequest{
		ID:        req.ID,
		Kind:      string(req.Kind),
		Operation: string(req.Operation),
		Status:    models.SettlementRequestStatus(req.Status),
		Account:   req.Account,
		Receiver:  req.Receiver,
		Token:     req.Token.String(),
		Amount:    req.Amount.Dec(),
		Fee:       req.Fee.Dec(),
		Origin:    req.Origin.String(),
		ChatID:    req.ChatID,
		Failure:   req.Failure,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
	if req.Service != nil {
		row.ServiceKey = req.Service.Key()
	}
	if req.Route != nil {
		row.RouteContract = req.Route.Contract
		row.RoutePoolIDs = poolIDsToArray(req.Route.PoolIDs)
	}
	if !req.Pending() {
		settled := req.UpdatedAt
		row.SettledAt = &settled
	}
	return row
}

// RequestFromRow is the inverse of RequestToRow.
func RequestFromRow(row *models.SettlementRequest) (ledger.Request, error) {
	req := ledger.Request{
		ID:        row.ID,
		Kind:      ledger.RequestKind(row.Kind),
		Operation: ledger.Operation(row.Operation),
		Status:    ledger.RequestStatus(row.Status),
		Account:   row.Account,
		Receiver:  row.Receiver,
		ChatID:    row.ChatID,
		Failure:   row.Failure,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	var err error
	if req.Token, err = ledger.ParseTokenID(row.Token); err != nil {
		return ledger.Request{}, fmt.Errorf("request %s token: %w", row.ID, err)
	}
	if req.Origin, err = ledger.ParseTokenID(row.Origin); err != nil {
		return ledger.Request{}, fmt.Errorf("request %s origin: %w", row.ID, err)
	}
	if req.Amount, err = parseStoredAmount(row.Amount); err != nil {
		return ledger.Request{}, fmt.Errorf("request %s amount: %w", row.ID, err)
	}
	if req.Fee, err = parseStoredAmount(row.Fee); err != nil {
		return ledger.Request{}, fmt.Errorf("request %s fee: %w", row.ID, err)
	}
	if row.ServiceKey != "" {
		svc, err := ledger.ParseServiceAccountKey(row.ServiceKey)
		if err != nil {
			return ledger.Request{}, fmt.Errorf("request %s service: %w", row.ID, err)
		}
		req.Service = &svc
	}
	if row.RouteContract != "" {
		req.Route = &ledger.SwapRoute{Contract: row.RouteContract, PoolIDs: poolIDsFromArray(row.RoutePoolIDs)}
	}
	return req, nil
}

func parseStoredAmount(s string) (ledger.Amount, error) {
	if s == "" {
		return ledger.Amount{}, nil
	}
	return ledger.ParseAmount(s)
}

func poolIDsToArray(ids []uint64) models.PoolIDs {
	out := make(models.PoolIDs, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func poolIDsFromArray(ids models.PoolIDs) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
