package db

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema. Column types in braces are filled in
// per dialect by EnsureSchema.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id                     TEXT PRIMARY KEY,
    username               TEXT NOT NULL,
    password_hash          TEXT NOT NULL,
    name                   TEXT NOT NULL DEFAULT '',
    department             TEXT NOT NULL DEFAULT '',
    position               TEXT NOT NULL DEFAULT '',
    phone                  TEXT NOT NULL DEFAULT '',
    level                  TEXT NOT NULL DEFAULT '1'
                           CHECK (level IN ('1', '2', '3', '4', '5', 'administrator')),
    remaining_annual_leave {real} NOT NULL DEFAULT 15,
    created_at             {ts} NOT NULL,
    updated_at             {ts} NOT NULL,
    last_login             {ts},
    deleted_at             {ts}
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    specification    TEXT NOT NULL DEFAULT '',
    maker            TEXT NOT NULL DEFAULT '',
    location         TEXT NOT NULL DEFAULT '',
    unit_price       {money} NOT NULL DEFAULT 0,
    purpose          TEXT NOT NULL DEFAULT '',
    min_stock        INTEGER NOT NULL DEFAULT 0,
    category         TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    stock_status     TEXT NOT NULL DEFAULT 'new'
                     CHECK (stock_status IN ('new', 'used-new', 'used-used', 'broken')),
    current_quantity INTEGER NOT NULL DEFAULT 0 CHECK (current_quantity >= 0),
    image_key        TEXT NOT NULL DEFAULT '',
    created_at       {ts} NOT NULL,
    updated_at       {ts} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_name_spec_active
    ON items(name, specification) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS stock_in (
    id             TEXT PRIMARY KEY,
    item_id        TEXT NOT NULL REFERENCES items(id),
    quantity       INTEGER NOT NULL CHECK (quantity > 0),
    unit_price     {money} NOT NULL,
    condition_type TEXT NOT NULL DEFAULT 'new',
    reason         TEXT NOT NULL DEFAULT '',
    ordered_by     TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    received_by    TEXT NOT NULL,
    received_at    {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_out (
    id          TEXT PRIMARY KEY,
    item_id     TEXT NOT NULL REFERENCES items(id),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    project     TEXT NOT NULL DEFAULT '',
    notes       TEXT NOT NULL DEFAULT '',
    is_rental   BOOLEAN NOT NULL DEFAULT FALSE,
    return_date {ts},
    issued_by   TEXT NOT NULL,
    issued_at   {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_history (
    id             TEXT PRIMARY KEY,
    item_id        TEXT NOT NULL REFERENCES items(id),
    kind           TEXT NOT NULL CHECK (kind IN ('in', 'out', 'adjust', 'disposal', 'edit')),
    delta          INTEGER NOT NULL,
    quantity_after INTEGER NOT NULL,
    unit_price     {money} NOT NULL,
    actor          TEXT NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    created_at     {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS closing_runs (
    id              TEXT PRIMARY KEY,
    run_no          TEXT NOT NULL,
    period_year     INTEGER NOT NULL,
    period_quarter  INTEGER,
    period_month    INTEGER,
    period_type     TEXT NOT NULL CHECK (period_type IN ('quarter', 'month')),
    total_items     INTEGER NOT NULL,
    total_value     {money} NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('completed', 'rolled_back')),
    notes           TEXT NOT NULL DEFAULT '',
    closed_by       TEXT NOT NULL,
    closed_at       {ts} NOT NULL,
    rollback_reason TEXT NOT NULL DEFAULT '',
    rolled_back_by  TEXT NOT NULL DEFAULT '',
    rolled_back_at  {ts}
);

CREATE TABLE IF NOT EXISTS closing_items (
    closing_run_id TEXT NOT NULL REFERENCES closing_runs(id),
    item_id        TEXT NOT NULL REFERENCES items(id),
    item_name      TEXT NOT NULL,
    specification  TEXT NOT NULL,
    quantity       INTEGER NOT NULL,
    unit_price     {money} NOT NULL,
    total_value    {money} NOT NULL,
    PRIMARY KEY (closing_run_id, item_id)
);

CREATE TABLE IF NOT EXISTS business_trips (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL REFERENCES users(id),
    project_id       TEXT NOT NULL DEFAULT '',
    trip_type        TEXT NOT NULL CHECK (trip_type IN ('business_trip', 'field_work')),
    sub_type         TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    start_date       TEXT NOT NULL,
    end_date         TEXT NOT NULL,
    start_time       TEXT NOT NULL DEFAULT '',
    end_time         TEXT NOT NULL DEFAULT '',
    location         TEXT NOT NULL DEFAULT '',
    purpose          TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
    approved_by      TEXT NOT NULL DEFAULT '',
    approved_at      {ts},
    rejection_reason TEXT NOT NULL DEFAULT '',
    report_status    TEXT NOT NULL DEFAULT 'unreported' CHECK (report_status IN ('unreported', 'reported')),
    report_content   TEXT NOT NULL DEFAULT '',
    reported_at      {ts},
    created_at       {ts} NOT NULL,
    updated_at       {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS trip_companions (
    trip_id TEXT NOT NULL REFERENCES business_trips(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id),
    PRIMARY KEY (trip_id, user_id)
);

CREATE TABLE IF NOT EXISTS leave_requests (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL REFERENCES users(id),
    leave_type       TEXT NOT NULL,
    start_date       TEXT NOT NULL,
    end_date         TEXT NOT NULL,
    start_time       TEXT NOT NULL DEFAULT '',
    end_time         TEXT NOT NULL DEFAULT '',
    total_days       {real} NOT NULL,
    reason           TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
    approved_by      TEXT NOT NULL DEFAULT '',
    approved_at      {ts},
    rejection_reason TEXT NOT NULL DEFAULT '',
    created_at       {ts} NOT NULL,
    updated_at       {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id                TEXT PRIMARY KEY,
    project_name      TEXT NOT NULL,
    project_number    TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'Manufacturing'
                      CHECK (status IN ('Manufacturing', 'Warranty', 'WarrantyComplete', 'Demolished')),
    client_name       TEXT NOT NULL DEFAULT '',
    assembly_date     TEXT NOT NULL DEFAULT '',
    factory_test_date TEXT NOT NULL DEFAULT '',
    site_test_date    TEXT NOT NULL DEFAULT '',
    created_by        TEXT NOT NULL DEFAULT '',
    created_at        {ts} NOT NULL,
    updated_at        {ts} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_number ON projects(project_number);

CREATE TABLE IF NOT EXISTS project_motors (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    motor_type      TEXT NOT NULL,
    motor_name      TEXT NOT NULL DEFAULT '',
    power_kw        {real} NOT NULL DEFAULT 0,
    voltage         TEXT NOT NULL DEFAULT '',
    phase           TEXT NOT NULL DEFAULT '',
    pole            TEXT NOT NULL DEFAULT '',
    current_amp     {real} NOT NULL DEFAULT 0,
    quantity        INTEGER NOT NULL DEFAULT 1 CHECK (quantity > 0),
    breaker_size    TEXT NOT NULL DEFAULT '',
    cable_size      TEXT NOT NULL DEFAULT '',
    eocr_setting    TEXT NOT NULL DEFAULT '',
    breaker_setting TEXT NOT NULL DEFAULT '',
    created_at      {ts} NOT NULL,
    updated_at      {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS todos (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id),
    title      TEXT NOT NULL,
    completed  BOOLEAN NOT NULL DEFAULT FALSE,
    due_date   TEXT NOT NULL DEFAULT '',
    priority   TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
    category   TEXT NOT NULL DEFAULT '',
    created_at {ts} NOT NULL,
    updated_at {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS schedule_events (
    id               TEXT PRIMARY KEY,
    category         TEXT NOT NULL,
    sub_category     TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    start_date       TEXT NOT NULL,
    start_time       TEXT NOT NULL DEFAULT '',
    end_date         TEXT NOT NULL,
    end_time         TEXT NOT NULL DEFAULT '',
    location         TEXT NOT NULL DEFAULT '',
    participant_id   TEXT NOT NULL,
    participant_name TEXT NOT NULL DEFAULT '',
    companions       TEXT NOT NULL DEFAULT '[]',
    project_id       TEXT NOT NULL DEFAULT '',
    project_name     TEXT NOT NULL DEFAULT '',
    created_by       TEXT NOT NULL,
    created_at       {ts} NOT NULL,
    updated_at       {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS work_diary (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL REFERENCES users(id),
    work_date           TEXT NOT NULL,
    project_id          TEXT NOT NULL DEFAULT '',
    project_name        TEXT NOT NULL DEFAULT '',
    custom_project_name TEXT NOT NULL DEFAULT '',
    work_content        TEXT NOT NULL,
    work_type           TEXT NOT NULL DEFAULT '',
    work_sub_type       TEXT NOT NULL DEFAULT '',
    created_at          {ts} NOT NULL,
    updated_at          {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL DEFAULT '',
    username      TEXT NOT NULL DEFAULT '',
    user_level    TEXT NOT NULL DEFAULT '',
    category      TEXT NOT NULL,
    action        TEXT NOT NULL,
    level         TEXT NOT NULL DEFAULT 'info',
    resource_type TEXT NOT NULL DEFAULT '',
    resource_id   TEXT NOT NULL DEFAULT '',
    details       TEXT NOT NULL DEFAULT '{}',
    ip_address    TEXT NOT NULL DEFAULT '',
    user_agent    TEXT NOT NULL DEFAULT '',
    created_at    {ts} NOT NULL
);

CREATE TABLE IF NOT EXISTS bid_items (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL CHECK (source IN ('naramarket', 'korail')),
    external_id TEXT NOT NULL,
    title       TEXT NOT NULL,
    company     TEXT NOT NULL DEFAULT '',
    price       TEXT NOT NULL DEFAULT '',
    deadline    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed', 'upcoming')),
    url         TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    keyword     TEXT NOT NULL DEFAULT '',
    created_at  {ts} NOT NULL,
    UNIQUE (source, external_id)
);

CREATE TABLE IF NOT EXISTS blobs (
    key        TEXT PRIMARY KEY,
    data       {blob} NOT NULL,
    mime       TEXT NOT NULL,
    created_at {ts} NOT NULL
)
`

// migrations are applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_stock_history_item ON stock_history(item_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_work_diary_user_date ON work_diary(user_id, work_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bid_items_created ON bid_items(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_project_motors_project ON project_motors(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_user ON todos(user_id, created_at)`,
}

var (
	sqliteTypes   = strings.NewReplacer("{ts}", "DATETIME", "{money}", "TEXT", "{real}", "REAL", "{blob}", "BLOB")
	postgresTypes = strings.NewReplacer("{ts}", "TIMESTAMPTZ", "{money}", "NUMERIC(15,2)", "{real}", "DOUBLE PRECISION", "{blob}", "BYTEA")
)

// EnsureSchema creates all tables and indexes if they don't already exist,
// then runs the migrations.
func EnsureSchema(db *sqlx.DB) error {
	ddl := sqliteTypes.Replace(schema)
	if IsPostgres(db) {
		ddl = postgresTypes.Replace(schema)
	}

	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
