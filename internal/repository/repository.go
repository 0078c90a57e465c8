package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"predictsol/internal/models"
	"predictsol/internal/settlement"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetCounter retrieves the event counter of a creator
func (r *Repository) GetCounter(ctx context.Context, creator string) (*models.EventCounter, error) {
	var counter models.EventCounter
	err := r.db.WithContext(ctx).Where("creator = ?", creator).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// CreateCounter creates a counter starting at zero
func (r *Repository) CreateCounter(ctx context.Context, counter *models.EventCounter) error {
	return r.db.WithContext(ctx).Create(counter).Error
}

// IncrementCounter advances counter by one, failing if another writer got there first
func (r *Repository) IncrementCounter(ctx context.Context, counter *models.EventCounter) error {
	next, err := settlement.CheckedAdd(counter.Count, 1)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.EventCounter{}).
		Where("address = ? AND count = ?", counter.Address, counter.Count).
		Update("count", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return settlement.ErrConcurrentUpdate
	}
	counter.Count = next
	return nil
}

// CreateEvent creates a new event
func (r *Repository) CreateEvent(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetEvent retrieves an event by address
func (r *Repository) GetEvent(ctx context.Context, address string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent writes every column of event if nobody changed it since it was
// read, and bumps its version.
func (r *Repository) UpdateEvent(ctx context.Context, event *models.Event) error {
	prev := event.Version
	event.Version = prev + 1

	res := r.db.WithContext(ctx).Model(event).
		Where("version = ?", prev).
		Select("*").
		Omit("address", "created_at").
		Updates(event)
	if res.Error != nil {
		event.Version = prev
		return fmt.Errorf("failed to update event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		event.Version = prev
		return settlement.ErrConcurrentUpdate
	}
	return nil
}

// DeleteEvent removes an event record
func (r *Repository) DeleteEvent(ctx context.Context, event *models.Event) error {
	res := r.db.WithContext(ctx).
		Where("address = ? AND version = ?", event.Address, event.Version).
		Delete(&models.Event{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return settlement.ErrConcurrentUpdate
	}
	return nil
}

// EventFilter narrows ListEvents
type EventFilter struct {
	Creator  string
	Status   models.ResultStatus
	Resolved *bool
	Limit    int
	Offset   int
}

// ListEvents lists events, newest first
func (r *Repository) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{})
	if filter.Creator != "" {
		query = query.Where("creator = ?", filter.Creator)
	}
	if filter.Status != "" {
		query = query.Where("result_status = ?", filter.Status)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var events []models.Event
	err := query.Order("created_at_unix DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error
	return events, total, err
}

// Cursor marks the last row of a keyset page. The zero Cursor starts from the
// beginning.
type Cursor struct {
	At      int64
	Address string
}

// IsZero reports whether c is the starting cursor
func (c Cursor) IsZero() bool {
	return c.At == 0 && c.Address == ""
}

// NextCursor returns the cursor following the last event of a full page, or the
// zero Cursor when the page came back short and the scan should wrap.
func NextCursor(events []models.Event, limit int, at func(models.Event) int64) Cursor {
	if len(events) == 0 || len(events) < limit {
		return Cursor{}
	}
	last := events[len(events)-1]
	return Cursor{At: at(last), Address: last.Address}
}

func after(query *gorm.DB, column string, c Cursor) *gorm.DB {
	if c.IsZero() {
		return query
	}
	return query.Where("("+column+" > ? OR ("+column+" = ? AND address > ?))", c.At, c.At, c.Address)
}

// ListFinalizable returns unresolved, oracle-linked events whose betting
// window closed, ordered by (bet_end_time, address) and starting after c.
func (r *Repository) ListFinalizable(ctx context.Context, now int64, c Cursor, limit int) ([]models.Event, error) {
	var events []models.Event
	query := r.db.WithContext(ctx).
		Where("resolved = ? AND bet_end_time <= ? AND truth_question <> ''", false, now)
	err := after(query, "bet_end_time", c).
		Order("bet_end_time ASC, address ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ListSweepable returns resolved, unswept events resolved at or before
// resolvedBefore, ordered by (resolved_at, address) and starting after c.
func (r *Repository) ListSweepable(ctx context.Context, resolvedBefore int64, c Cursor, limit int) ([]models.Event, error) {
	var events []models.Event
	query := r.db.WithContext(ctx).
		Where("resolved = ? AND unclaimed_swept = ? AND resolved_at > 0 AND resolved_at <= ?", true, false, resolvedBefore)
	err := after(query, "resolved_at", c).
		Order("resolved_at ASC, address ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ListTransactions lists the settlement ledger of an event in insertion order
func (r *Repository) ListTransactions(ctx context.Context, event string, limit, offset int) ([]models.SettlementTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txs []models.SettlementTransaction
	err := r.db.WithContext(ctx).
		Where("event_address = ?", event).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

// GetWalletDeposit retrieves a credited deposit by signature
func (r *Repository) GetWalletDeposit(ctx context.Context, signature string) (*models.WalletDeposit, error) {
	var deposit models.WalletDeposit
	err := r.db.WithContext(ctx).Where("signature = ?", signature).First(&deposit).Error
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// CreateWalletDeposit records a credited deposit; the signature is unique
func (r *Repository) CreateWalletDeposit(ctx context.Context, deposit *models.WalletDeposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}
