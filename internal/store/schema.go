package store

// Schema is the DDL for the mailspend database.
const Schema = `
CREATE TABLE IF NOT EXISTS tokens (
    account        TEXT PRIMARY KEY,
    access_token   TEXT NOT NULL,
    refresh_token  TEXT,
    expires_at_ms  INTEGER NOT NULL DEFAULT 0,
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id            TEXT PRIMARY KEY,
    account       TEXT NOT NULL,
    service       TEXT NOT NULL,
    amount        REAL NOT NULL DEFAULT 0,
    currency      TEXT NOT NULL DEFAULT 'USD',
    frequency     TEXT NOT NULL DEFAULT 'MONTHLY',
    category      TEXT,
    last_billed   TEXT,
    next_billing  TEXT,
    status        TEXT NOT NULL DEFAULT 'ACTIVE',
    confidence    INTEGER NOT NULL DEFAULT 0,
    message_id    TEXT,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id           TEXT PRIMARY KEY,
    account      TEXT NOT NULL,
    merchant     TEXT NOT NULL,
    amount       REAL NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'USD',
    date         TEXT NOT NULL,
    category     TEXT,
    description  TEXT,
    receipt_id   TEXT,
    confidence   INTEGER NOT NULL DEFAULT 0,
    message_id   TEXT,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
    message_id  TEXT NOT NULL,
    account     TEXT NOT NULL,
    service     TEXT NOT NULL,
    amount      REAL NOT NULL DEFAULT 0,
    date        TEXT,
    confidence  INTEGER NOT NULL DEFAULT 0,
    synced_at   TEXT NOT NULL,
    PRIMARY KEY (message_id, account)
);

CREATE TABLE IF NOT EXISTS sync_log (
    id          TEXT PRIMARY KEY,
    account     TEXT NOT NULL,
    scanned     INTEGER NOT NULL DEFAULT 0,
    found       INTEGER NOT NULL DEFAULT 0,
    warning     TEXT,
    started_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_account ON subscriptions(account);
CREATE INDEX IF NOT EXISTS idx_expenses_account ON expenses(account);
CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date DESC);
CREATE INDEX IF NOT EXISTS idx_sync_log_account ON sync_log(account, started_at DESC);
`
