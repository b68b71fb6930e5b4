package store

// schema is the DDL for the relational metadata index, spec.md §4.5. Table
// shapes match the spec's listing; `idx` is used instead of the reserved
// word `index`. Foreign keys are enabled per-connection in Open so that
// ON DELETE CASCADE performs the cascades spec.md §3 "Lifecycles" and §9
// "Cascade deletes" ask for in the schema rather than in application code.
const schema = `
CREATE TABLE IF NOT EXISTS timeline (
	id           TEXT PRIMARY KEY,
	time_created INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	timeline_id  TEXT NOT NULL REFERENCES timeline(id) ON DELETE CASCADE,
	revision     INTEGER NOT NULL,
	name         TEXT,
	description  TEXT NOT NULL DEFAULT '',
	pinned       INTEGER NOT NULL DEFAULT 0,
	time_created INTEGER NOT NULL,
	UNIQUE(timeline_id, revision)
);

CREATE TABLE IF NOT EXISTS version (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id      INTEGER NOT NULL REFERENCES snapshot(id) ON DELETE CASCADE,
	path             TEXT NOT NULL,
	last_modified_ms INTEGER NOT NULL,
	permissions      INTEGER,
	size             INTEGER NOT NULL,
	checksum         BLOB NOT NULL,
	UNIQUE(snapshot_id, path)
);

CREATE INDEX IF NOT EXISTS idx_version_path ON version(path);

CREATE TABLE IF NOT EXISTS blob (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	checksum BLOB NOT NULL UNIQUE,
	size     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS block (
	version_id INTEGER NOT NULL REFERENCES version(id) ON DELETE CASCADE,
	blob_id    INTEGER NOT NULL REFERENCES blob(id),
	idx        INTEGER NOT NULL,
	PRIMARY KEY (version_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_block_blob ON block(blob_id);

CREATE TABLE IF NOT EXISTS tag (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id INTEGER NOT NULL REFERENCES snapshot(id) ON DELETE CASCADE,
	timeline_id TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	pinned      INTEGER NOT NULL DEFAULT 0,
	UNIQUE(timeline_id, name)
);

CREATE TABLE IF NOT EXISTS cleanup_policy (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	min_interval_ms INTEGER NOT NULL,
	time_frame_ms   INTEGER NOT NULL,
	max_versions    INTEGER NOT NULL,
	description     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS timeline_cleanup_policy (
	timeline_id TEXT NOT NULL REFERENCES timeline(id) ON DELETE CASCADE,
	policy_id   INTEGER NOT NULL REFERENCES cleanup_policy(id) ON DELETE CASCADE,
	PRIMARY KEY (timeline_id, policy_id)
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
