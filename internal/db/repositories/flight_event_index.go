package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"drone-flight/registry/internal/ledger"

	"github.com/jmoiron/sqlx"
)

const createFlightEventIndex = `
CREATE TABLE IF NOT EXISTS flight_event_index (
	tx_hash     VARCHAR(66) PRIMARY KEY,
	flight_id   BIGINT      NOT NULL,
	event       VARCHAR(32) NOT NULL,
	registrant  VARCHAR(42) NOT NULL,
	data_hash   VARCHAR(66),
	contract    VARCHAR(42) NOT NULL,
	chain_id    BIGINT      NOT NULL,
	emitted_at  TIMESTAMP   NOT NULL,
	indexed_at  TIMESTAMP   NOT NULL
)`

const insertFlightEvent = `
INSERT INTO flight_event_index
	(tx_hash, flight_id, event, registrant, data_hash, contract, chain_id, emitted_at, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (tx_hash) DO NOTHING`

const selectByRegistrant = `
SELECT tx_hash, flight_id, event, registrant, data_hash, contract, chain_id, emitted_at, indexed_at
FROM flight_event_index
WHERE registrant = ?
ORDER BY flight_id ASC`

// IndexedFlightEvent is a row of the consumer-side event index.
type IndexedFlightEvent struct {
	TxHash     string         `db:"tx_hash" json:"txHash"`
	FlightID   int64          `db:"flight_id" json:"flightId"`
	Event      string         `db:"event" json:"event"`
	Registrant string         `db:"registrant" json:"registrant"`
	DataHash   sql.NullString `db:"data_hash" json:"-"`
	Contract   string         `db:"contract" json:"contract"`
	ChainID    int64          `db:"chain_id" json:"chainId"`
	EmittedAt  time.Time      `db:"emitted_at" json:"emittedAt"`
	IndexedAt  time.Time      `db:"indexed_at" json:"indexedAt"`
}

func (e IndexedFlightEvent) MarshalJSON() ([]byte, error) {
	type alias IndexedFlightEvent
	out := struct {
		alias
		DataHash *string `json:"dataHash,omitempty"`
	}{alias: alias(e)}
	if e.DataHash.Valid {
		out.DataHash = &e.DataHash.String
	}
	return json.Marshal(out)
}

// FlightEventIndex is the durable store consumers keep of emitted events.
type FlightEventIndex struct {
	db *sqlx.DB
}

func NewFlightEventIndex(db *sqlx.DB) *FlightEventIndex {
	return &FlightEventIndex{db: db}
}

func (r *FlightEventIndex) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFlightEventIndex); err != nil {
		return fmt.Errorf("failed to create flight_event_index: %w", err)
	}
	return nil
}

// Insert indexes ev. Re-delivered events are ignored.
func (r *FlightEventIndex) Insert(ctx context.Context, ev ledger.Event) error {
	var dataHash sql.NullString
	if ev.DataHash != nil {
		dataHash = sql.NullString{String: ev.DataHash.Hex(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(insertFlightEvent),
		ev.TxHash.Hex(),
		int64(ev.FlightID),
		ev.Name,
		ev.Registrant.Hex(),
		dataHash,
		ev.Contract.Hex(),
		int64(ev.ChainID),
		ev.Timestamp.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to index event %d: %w", ev.FlightID, err)
	}
	return nil
}

func (r *FlightEventIndex) ByRegistrant(ctx context.Context, registrant string) ([]IndexedFlightEvent, error) {
	var rows []IndexedFlightEvent
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectByRegistrant), registrant); err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	return rows, nil
}

func (r *FlightEventIndex) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
