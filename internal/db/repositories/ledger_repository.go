package repositories

import (
	"context"
	"errors"
	"fmt"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/models/gorm"

	"github.com/ethereum/go-ethereum/common"
	gormlib "gorm.io/gorm"
)

// LedgerRepository persists a ledger's counter and event log with GORM.
type LedgerRepository struct {
	db   *gormlib.DB
	name string
}

var _ ledger.Store = (*LedgerRepository)(nil)

// NewLedgerRepository creates a repository for the ledger instance at address.
func NewLedgerRepository(db *gormlib.DB, address common.Address) *LedgerRepository {
	return &LedgerRepository{db: db, name: address.Hex()}
}

// Migrate creates the ledger tables.
func (r *LedgerRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&gorm.LedgerCounter{}, &gorm.FlightEvent{})
}

func (r *LedgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *LedgerRepository) Counter(ctx context.Context) (uint64, error) {
	var row gorm.LedgerCounter
	err := r.db.WithContext(ctx).Where("name = ?", r.name).First(&row).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return row.Value, nil
}

// Commit moves the counter from prev to ev.FlightID and appends ev in one
// transaction.
func (r *LedgerRepository) Commit(ctx context.Context, prev uint64, ev ledger.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		row := gorm.LedgerCounter{Name: r.name}
		if err := tx.Where("name = ?", r.name).
			Attrs(gorm.LedgerCounter{Value: 0}).
			FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("failed to load counter: %w", err)
		}

		res := tx.Model(&gorm.LedgerCounter{}).
			Where("name = ? AND value = ?", r.name, prev).
			Update("value", ev.FlightID)
		if res.Error != nil {
			return fmt.Errorf("failed to update counter: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ledger.ErrCounterMismatch
		}

		record := toEventRecord(r.name, ev)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	})
}

func (r *LedgerRepository) Events(ctx context.Context, fromID uint64, limit int) ([]ledger.Event, error) {
	var rows []gorm.FlightEvent
	err := r.db.WithContext(ctx).
		Where("ledger = ? AND flight_id >= ?", r.name, fromID).
		Order("flight_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]ledger.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromEventRecord(row))
	}
	return events, nil
}

func (r *LedgerRepository) EventByTx(ctx context.Context, txHash common.Hash) (ledger.Event, error) {
	var row gorm.FlightEvent
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash.Hex()).First(&row).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return ledger.Event{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Event{}, fmt.Errorf("failed to find event: %w", err)
	}
	return fromEventRecord(row), nil
}

func toEventRecord(name string, ev ledger.Event) gorm.FlightEvent {
	record := gorm.FlightEvent{
		Ledger:     name,
		FlightID:   ev.FlightID,
		Event:      ev.Name,
		Registrant: ev.Registrant.Hex(),
		Topic:      ev.Topic.Hex(),
		TxHash:     ev.TxHash.Hex(),
		Contract:   ev.Contract.Hex(),
		ChainID:    ev.ChainID,
		EmittedAt:  ev.Timestamp,
	}
	if ev.DataHash != nil {
		h := ev.DataHash.Hex()
		record.DataHash = &h
	}
	return record
}

func fromEventRecord(row gorm.FlightEvent) ledger.Event {
	ev := ledger.Event{
		Name:       row.Event,
		FlightID:   row.FlightID,
		Registrant: common.HexToAddress(row.Registrant),
		Topic:      common.HexToHash(row.Topic),
		TxHash:     common.HexToHash(row.TxHash),
		Contract:   common.HexToAddress(row.Contract),
		ChainID:    row.ChainID,
		Timestamp:  row.EmittedAt.UTC(),
	}
	if row.DataHash != nil {
		h := common.HexToHash(*row.DataHash)
		ev.DataHash = &h
	}
	return ev
}
