package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	root_path  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	workspace_id  TEXT NOT NULL REFERENCES workspaces(id),
	source_path   TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL,
	byte_size     INTEGER NOT NULL DEFAULT 0,
	session_only  INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	UNIQUE(workspace_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_documents_workspace ON documents(workspace_id);
CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(workspace_id, source_path);

CREATE TABLE IF NOT EXISTS document_sessions (
	session_id  TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (session_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_document_sessions_session ON document_sessions(session_id);

CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ordinal     INTEGER NOT NULL,
	heading     TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	start_char  INTEGER NOT NULL,
	end_char    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	model    TEXT NOT NULL,
	vector   BLOB NOT NULL,
	PRIMARY KEY (chunk_id, model)
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	content,
	heading,
	source_name,
	tokenize = 'unicode61'
);

INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('schema_version', '1');
`

// CurrentSchemaVersion is bumped whenever schemaDDL changes in a way that
// requires a migration rather than a plain CREATE IF NOT EXISTS.
const CurrentSchemaVersion = 1
