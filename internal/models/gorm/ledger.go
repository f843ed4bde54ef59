package gorm

import "time"

// LedgerCounter stores the flight counter of one ledger instance.
type LedgerCounter struct {
	Name      string    `gorm:"column:name;primaryKey;type:varchar(64)"`
	Value     uint64    `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (LedgerCounter) TableName() string {
	return "ledger_counters"
}

// FlightEvent is one emitted registration event.
type FlightEvent struct {
	Ledger     string    `gorm:"column:ledger;primaryKey;type:varchar(64)"`
	FlightID   uint64    `gorm:"column:flight_id;primaryKey;autoIncrement:false"`
	Event      string    `gorm:"column:event;type:varchar(32);not null"`
	Registrant string    `gorm:"column:registrant;type:varchar(42);index;not null"`
	DataHash   *string   `gorm:"column:data_hash;type:varchar(66)"`
	Topic      string    `gorm:"column:topic;type:varchar(66);not null"`
	TxHash     string    `gorm:"column:tx_hash;type:varchar(66);uniqueIndex;not null"`
	Contract   string    `gorm:"column:contract;type:varchar(42);not null"`
	ChainID    uint64    `gorm:"column:chain_id;not null"`
	EmittedAt  time.Time `gorm:"column:emitted_at;not null"`
}

// TableName specifies the table name for GORM
func (FlightEvent) TableName() string {
	return "flight_events"
}
