package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database
// schema.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    request_id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,

    model_id TEXT NOT NULL,
    profile_arn TEXT,

    transport_method TEXT NOT NULL,
    reason TEXT,

    latency_ms INTEGER NOT NULL,
    success BOOLEAN NOT NULL,
    status_code INTEGER NOT NULL,
    request_bytes INTEGER NOT NULL,
    response_bytes INTEGER NOT NULL,
    attempts INTEGER NOT NULL,

    error_kind TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_model ON audit_records(model_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`
