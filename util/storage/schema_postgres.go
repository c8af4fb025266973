package storage

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS pln (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    email       TEXT NOT NULL DEFAULT '',
    username    TEXT NOT NULL DEFAULT '',
    password    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS box (
    id                   BIGSERIAL PRIMARY KEY,
    pln_id               BIGINT NOT NULL REFERENCES pln(id),
    hostname             TEXT NOT NULL,
    ip_address           TEXT NOT NULL DEFAULT '',
    protocol             TEXT NOT NULL DEFAULT 'TCP',
    port                 INTEGER NOT NULL DEFAULT 9729,
    web_service_port     INTEGER NOT NULL DEFAULT 80,
    web_service_protocol TEXT NOT NULL DEFAULT 'http',
    contact_name         TEXT NOT NULL DEFAULT '',
    contact_email        TEXT NOT NULL DEFAULT '',
    send_notifications   BOOLEAN NOT NULL DEFAULT FALSE,
    active               BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS content_provider (
    id                BIGSERIAL PRIMARY KEY,
    uuid              TEXT NOT NULL UNIQUE,
    pln_id            BIGINT NOT NULL REFERENCES pln(id),
    name              TEXT NOT NULL DEFAULT '',
    plugin_identifier TEXT NOT NULL DEFAULT '',
    permission_url    TEXT NOT NULL DEFAULT '',
    max_file_size     BIGINT NOT NULL DEFAULT 0,
    max_au_size       BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS au (
    id                  BIGSERIAL PRIMARY KEY,
    pln_id              BIGINT NOT NULL REFERENCES pln(id),
    content_provider_id BIGINT REFERENCES content_provider(id),
    plugin_identifier   TEXT NOT NULL DEFAULT '',
    params              JSONB NOT NULL DEFAULT '[]',
    comment             TEXT NOT NULL DEFAULT '',
    auid                TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS deposit (
    id                  BIGSERIAL PRIMARY KEY,
    uuid                TEXT NOT NULL UNIQUE,
    au_id               BIGINT NOT NULL REFERENCES au(id),
    content_provider_id BIGINT REFERENCES content_provider(id),
    title               TEXT NOT NULL DEFAULT '',
    url                 TEXT NOT NULL,
    checksum_type       TEXT NOT NULL DEFAULT '',
    checksum_value      TEXT NOT NULL DEFAULT '',
    size                BIGINT NOT NULL DEFAULT 0,
    agreement           DOUBLE PRECISION,
    checked             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_deposit_check ON deposit(agreement, checked);

CREATE TABLE IF NOT EXISTS au_status (
    id         UUID PRIMARY KEY,
    au_id      BIGINT NOT NULL REFERENCES au(id),
    created    TIMESTAMPTZ NOT NULL,
    status     JSONB NOT NULL,
    errors     JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_au_status_au ON au_status(au_id, created);

CREATE TABLE IF NOT EXISTS deposit_status (
    id         UUID PRIMARY KEY,
    deposit_id BIGINT NOT NULL REFERENCES deposit(id),
    created    TIMESTAMPTZ NOT NULL,
    agreement  DOUBLE PRECISION NOT NULL,
    status     JSONB NOT NULL,
    errors     JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deposit_status_deposit ON deposit_status(deposit_id, created);

CREATE TABLE IF NOT EXISTS box_status (
    id         UUID PRIMARY KEY,
    box_id     BIGINT NOT NULL REFERENCES box(id),
    created    TIMESTAMPTZ NOT NULL,
    success    BOOLEAN NOT NULL,
    errors     TEXT NOT NULL DEFAULT '',
    data       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_box_status_box ON box_status(box_id, created);
`
