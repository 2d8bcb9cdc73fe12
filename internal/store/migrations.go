package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
//
// Every entity type gets a row table carrying the shared header columns
// and an append-only <type>_event table keyed by (ref_id, version).
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS workspace (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	name                   TEXT NOT NULL UNIQUE,
	timezone               TEXT NOT NULL,
	default_project_ref_id TEXT NOT NULL DEFAULT '',
	features               TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS workspace_event (
	ref_id    TEXT NOT NULL REFERENCES workspace(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS project (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id      TEXT NOT NULL REFERENCES workspace(ref_id),
	key                   TEXT NOT NULL,
	name                  TEXT NOT NULL,
	parent_project_ref_id TEXT REFERENCES project(ref_id),
	UNIQUE (workspace_ref_id, key)
);

CREATE TABLE IF NOT EXISTS project_event (
	ref_id    TEXT NOT NULL REFERENCES project(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS recurring_task (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id TEXT NOT NULL REFERENCES workspace(ref_id),
	project_ref_id   TEXT NOT NULL REFERENCES project(ref_id),
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	period           TEXT NOT NULL,
	gen_params       TEXT NOT NULL DEFAULT '{}',
	skip_rule        TEXT,
	suspended        INTEGER NOT NULL DEFAULT 0,
	must_do          INTEGER NOT NULL DEFAULT 0,
	start_at_date    DATETIME NOT NULL,
	end_at_date      DATETIME
);

CREATE TABLE IF NOT EXISTS recurring_task_event (
	ref_id    TEXT NOT NULL REFERENCES recurring_task(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS big_plan (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id TEXT NOT NULL REFERENCES workspace(ref_id),
	project_ref_id   TEXT NOT NULL REFERENCES project(ref_id),
	name             TEXT NOT NULL,
	status           TEXT NOT NULL,
	actionable_date  DATETIME,
	due_date         DATETIME,
	accepted_time    DATETIME,
	working_time     DATETIME,
	completed_time   DATETIME
);

CREATE TABLE IF NOT EXISTS big_plan_event (
	ref_id    TEXT NOT NULL REFERENCES big_plan(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS inbox_task (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id        TEXT NOT NULL REFERENCES workspace(ref_id),
	project_ref_id          TEXT NOT NULL REFERENCES project(ref_id),
	name                    TEXT NOT NULL,
	status                  TEXT NOT NULL,
	source                  TEXT NOT NULL,
	source_ref_id           TEXT,
	eisen                   TEXT NOT NULL DEFAULT '[]',
	difficulty              TEXT,
	actionable_date         DATETIME,
	due_date                DATETIME,
	recurring_timeline      TEXT,
	recurring_type          TEXT,
	recurring_gen_right_now DATETIME,
	accepted_time           DATETIME,
	working_time            DATETIME,
	completed_time          DATETIME
);

CREATE TABLE IF NOT EXISTS inbox_task_event (
	ref_id    TEXT NOT NULL REFERENCES inbox_task(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS metric (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id  TEXT NOT NULL REFERENCES workspace(ref_id),
	key               TEXT NOT NULL,
	name              TEXT NOT NULL,
	collection_params TEXT,
	UNIQUE (workspace_ref_id, key)
);

CREATE TABLE IF NOT EXISTS metric_event (
	ref_id    TEXT NOT NULL REFERENCES metric(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS person (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id          TEXT NOT NULL REFERENCES workspace(ref_id),
	name                      TEXT NOT NULL,
	catch_up_params           TEXT,
	birthday                  TEXT,
	birthday_preparation_days INTEGER NOT NULL DEFAULT 14,
	UNIQUE (workspace_ref_id, name)
);

CREATE TABLE IF NOT EXISTS person_event (
	ref_id    TEXT NOT NULL REFERENCES person(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE TABLE IF NOT EXISTS vacation (
	ref_id             TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	archived           INTEGER NOT NULL DEFAULT 0,
	created_time       DATETIME NOT NULL,
	last_modified_time DATETIME NOT NULL,
	archived_time      DATETIME,
	workspace_ref_id TEXT NOT NULL REFERENCES workspace(ref_id),
	name             TEXT NOT NULL,
	start_date       DATETIME NOT NULL,
	end_date         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS vacation_event (
	ref_id    TEXT NOT NULL REFERENCES vacation(ref_id) ON DELETE CASCADE,
	version   INTEGER NOT NULL,
	source    TEXT NOT NULL,
	name      TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	payload   TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (ref_id, version)
);

CREATE INDEX IF NOT EXISTS idx_project_workspace ON project(workspace_ref_id);
CREATE INDEX IF NOT EXISTS idx_recurring_task_workspace ON recurring_task(workspace_ref_id);
CREATE INDEX IF NOT EXISTS idx_inbox_task_workspace ON inbox_task(workspace_ref_id);
CREATE INDEX IF NOT EXISTS idx_inbox_task_source ON inbox_task(source, source_ref_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_inbox_task_timeline
	ON inbox_task(source, source_ref_id, recurring_timeline)
	WHERE archived = 0 AND recurring_timeline IS NOT NULL;

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS external_collection (
	collection_key TEXT PRIMARY KEY,
	external_id    TEXT NOT NULL,
	entity_type    TEXT NOT NULL,
	schema         TEXT NOT NULL DEFAULT '{}',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS external_link (
	collection_key TEXT NOT NULL REFERENCES external_collection(collection_key) ON DELETE CASCADE,
	entity_type    TEXT NOT NULL,
	ref_id         TEXT NOT NULL,
	external_id    TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL,
	PRIMARY KEY (collection_key, ref_id),
	UNIQUE (collection_key, external_id)
);

CREATE INDEX IF NOT EXISTS idx_external_link_ref ON external_link(ref_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
