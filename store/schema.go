package store

import "database/sql"

// Schema is the complete pricewatch schema. Timestamps are epoch
// milliseconds. Nullable columns carry real NULLs only where the data
// model is tri-state (in_stock) or genuinely open-ended (finished_at,
// last_notified); optional text fields default to ''.
const Schema = `
-- Users referenced by price alerts (managed by the external app surface)
CREATE TABLE IF NOT EXISTS users (
    id                TEXT PRIMARY KEY,
    email             TEXT NOT NULL DEFAULT '',
    name              TEXT NOT NULL DEFAULT '',
    push_subscription TEXT NOT NULL DEFAULT '',
    created_at        INTEGER NOT NULL
);

-- Canonical medication catalog: created lazily, never mutated
CREATE TABLE IF NOT EXISTS medications (
    id               TEXT PRIMARY KEY,
    generic_name     TEXT NOT NULL,
    commercial_name  TEXT NOT NULL DEFAULT '',
    active_principle TEXT NOT NULL DEFAULT '',
    laboratory       TEXT NOT NULL DEFAULT '',
    concentration    TEXT NOT NULL DEFAULT '',
    presentation     TEXT NOT NULL DEFAULT '',
    quantity         TEXT NOT NULL DEFAULT '',
    ean              TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_medications_ean ON medications(ean);
CREATE INDEX IF NOT EXISTS idx_medications_commercial ON medications(commercial_name);

-- Pharmacy branches: identity is (chain, external_id) when the branch
-- code is known; a missing code risks duplicate rows across runs
CREATE TABLE IF NOT EXISTS pharmacies (
    id          TEXT PRIMARY KEY,
    chain       TEXT NOT NULL,
    name        TEXT NOT NULL,
    address     TEXT NOT NULL DEFAULT '',
    commune     TEXT NOT NULL DEFAULT '',
    region      TEXT NOT NULL DEFAULT '',
    external_id TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pharmacies_chain_ext ON pharmacies(chain, external_id);

-- Append-only price history: one row per observation, never updated
CREATE TABLE IF NOT EXISTS prices (
    id            TEXT PRIMARY KEY,
    medication_id TEXT NOT NULL REFERENCES medications(id),
    pharmacy_id   TEXT NOT NULL REFERENCES pharmacies(id),
    price         INTEGER NOT NULL,
    in_stock      INTEGER,
    observed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_medication ON prices(medication_id, price);
CREATE INDEX IF NOT EXISTS idx_prices_pharmacy ON prices(pharmacy_id);

-- One row per collection attempt; status is the primary observability signal
CREATE TABLE IF NOT EXISTS collection_runs (
    id              TEXT PRIMARY KEY,
    chain           TEXT NOT NULL,
    status          TEXT NOT NULL,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER,
    records_updated INTEGER,
    error_message   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_chain_time ON collection_runs(chain, started_at DESC);

-- User price thresholds; last_notified is the anti-spam cooldown state
CREATE TABLE IF NOT EXISTS price_alerts (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(id),
    medication_id TEXT NOT NULL REFERENCES medications(id),
    target_price  INTEGER NOT NULL,
    chain         TEXT NOT NULL DEFAULT '',
    active        INTEGER NOT NULL DEFAULT 1,
    last_notified INTEGER,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_active ON price_alerts(active);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
