package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	full_name    TEXT NOT NULL DEFAULT '',
	avatar_url   TEXT,
	role         TEXT NOT NULL DEFAULT 'client',
	company_name TEXT,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT COLLATE NOCASE,
	company    TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	client_id             TEXT NOT NULL REFERENCES clients(id),
	status                TEXT NOT NULL DEFAULT 'active',
	progress              INTEGER NOT NULL DEFAULT 0,
	start_date            DATETIME NOT NULL,
	end_date              DATETIME,
	notification_settings TEXT,
	created_by            TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deliverables (
	id               TEXT PRIMARY KEY,
	project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	due_date         DATETIME,
	status           TEXT NOT NULL DEFAULT 'pending',
	rejection_reason TEXT,
	approved_at      DATETIME,
	approved_by      TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	link       TEXT,
	project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
	actor_id   TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	parent_id  TEXT REFERENCES comments(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	mentions   TEXT NOT NULL DEFAULT '[]',
	is_edited  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliverables_project ON deliverables(project_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_comments_project ON comments(project_id, parent_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS social_media_posts (
	id                  TEXT PRIMARY KEY,
	project_id          TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title               TEXT NOT NULL,
	content             TEXT,
	media_urls          TEXT NOT NULL DEFAULT '[]',
	platform            TEXT NOT NULL,
	scheduled_date      TEXT NOT NULL,
	scheduled_time      TEXT,
	status              TEXT NOT NULL DEFAULT 'draft',
	notify_before_hours INTEGER NOT NULL DEFAULT 2,
	notification_sent   INTEGER NOT NULL DEFAULT 0,
	hashtags            TEXT NOT NULL DEFAULT '[]',
	notes               TEXT,
	approved_by         TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	approved_at         DATETIME,
	published_at        DATETIME,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	original_name TEXT NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	mime_type     TEXT NOT NULL DEFAULT 'application/octet-stream',
	storage_path  TEXT NOT NULL UNIQUE,
	uploaded_by   TEXT REFERENCES profiles(id) ON DELETE SET NULL,
	description   TEXT,
	version       INTEGER NOT NULL DEFAULT 1,
	parent_id     TEXT REFERENCES files(id) ON DELETE CASCADE,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_project ON social_media_posts(project_id, scheduled_date);
CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS reminder_sends (
	id             TEXT PRIMARY KEY,
	deliverable_id TEXT NOT NULL REFERENCES deliverables(id) ON DELETE CASCADE,
	bucket         TEXT NOT NULL,
	channel        TEXT NOT NULL,
	recipient      TEXT NOT NULL,
	status         TEXT NOT NULL,
	error          TEXT,
	created_at     DATETIME NOT NULL,
	UNIQUE (deliverable_id, bucket, channel)
);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
