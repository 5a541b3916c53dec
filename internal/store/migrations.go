package store

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id            TEXT PRIMARY KEY,
    period_start  DATETIME NOT NULL,
    period_end    DATETIME NOT NULL,
    hash          TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'processing',
    demo_mode     BOOLEAN NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    completed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);

CREATE TABLE IF NOT EXISTS entities (
    key         TEXT PRIMARY KEY,
    label       TEXT NOT NULL,
    kind        TEXT NOT NULL DEFAULT '',
    first_seen  TEXT NOT NULL DEFAULT '',
    last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
    id               TEXT PRIMARY KEY,
    report_id        TEXT NOT NULL REFERENCES reports(id),
    entity_key       TEXT NOT NULL REFERENCES entities(key),
    rank             INTEGER NOT NULL,
    momentum         REAL NOT NULL DEFAULT 0,
    novelty          REAL NOT NULL DEFAULT 0,
    quality          REAL NOT NULL DEFAULT 0,
    total_score      REAL NOT NULL DEFAULT 0,
    normalized_score REAL NOT NULL DEFAULT 0,
    features         TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_candidates_report ON candidates(report_id);

CREATE TABLE IF NOT EXISTS investigation_steps (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    candidate_id  TEXT NOT NULL REFERENCES candidates(id),
    step          INTEGER NOT NULL,
    tool          TEXT NOT NULL,
    input         TEXT NOT NULL DEFAULT '{}',
    summary       TEXT NOT NULL DEFAULT '',
    links         TEXT NOT NULL DEFAULT '[]',
    evidence      TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_steps_candidate ON investigation_steps(candidate_id);

CREATE TABLE IF NOT EXISTS narratives (
    id             TEXT PRIMARY KEY,
    report_id      TEXT NOT NULL REFERENCES reports(id),
    cluster_id     INTEGER NOT NULL,
    title          TEXT NOT NULL,
    summary        TEXT NOT NULL DEFAULT '',
    momentum       REAL NOT NULL DEFAULT 0,
    novelty        REAL NOT NULL DEFAULT 0,
    saturation     REAL NOT NULL DEFAULT 0,
    member_labels  TEXT NOT NULL DEFAULT '[]',
    evidence       TEXT NOT NULL DEFAULT '[]',
    alerted        BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_narratives_report ON narratives(report_id);

CREATE TABLE IF NOT EXISTS ideas (
    id                TEXT PRIMARY KEY,
    narrative_id      TEXT NOT NULL REFERENCES narratives(id),
    position          INTEGER NOT NULL,
    title             TEXT NOT NULL,
    pitch             TEXT NOT NULL DEFAULT '',
    target_user       TEXT NOT NULL DEFAULT '',
    mvp_scope         TEXT NOT NULL DEFAULT '',
    why_now           TEXT NOT NULL DEFAULT '',
    validation        TEXT NOT NULL DEFAULT '',
    saturation_level  TEXT NOT NULL DEFAULT 'low',
    saturation_score  REAL NOT NULL DEFAULT 0,
    neighbors         TEXT NOT NULL DEFAULT '[]',
    competition       TEXT NOT NULL DEFAULT '',
    pivot             TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ideas_narrative ON ideas(narrative_id);
`
