package migrate

// Migration is one forward-only, numbered schema step. Statements run in
// order inside a single transaction; there is no Revert — rollback restores
// the pre-apply backup file instead (see Manager.Rollback).
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// Versions is the ordered, contiguous sequence of migrations applied by
// Manager.Apply. Every additive column defaults to NULL/empty so rows
// written before that migration remain valid without rewriting.
var Versions = []Migration{
	{
		Version:     1,
		Description: "initial task and dependency tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				priority TEXT NOT NULL DEFAULT 'medium',
				assignee TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS dependencies (
				task_id TEXT NOT NULL,
				depends_on_id TEXT NOT NULL,
				PRIMARY KEY (task_id, depends_on_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on_id)`,
		},
	},
	{
		Version:     2,
		Description: "file references and tags",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS file_refs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id TEXT NOT NULL,
				path TEXT NOT NULL,
				line_start INTEGER NOT NULL,
				line_end INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_file_refs_task ON file_refs(task_id)`,
			`CREATE TABLE IF NOT EXISTS tags (
				task_id TEXT NOT NULL,
				tag TEXT NOT NULL,
				PRIMARY KEY (task_id, tag)
			)`,
		},
	},
	{
		Version:     3,
		Description: "shared context, private notes, participants",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS context_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id TEXT NOT NULL,
				agent_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_context_task ON context_entries(task_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS private_notes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id TEXT NOT NULL,
				agent_id TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_private_notes_task_agent ON private_notes(task_id, agent_id)`,
			`CREATE TABLE IF NOT EXISTS participants (
				task_id TEXT NOT NULL,
				agent_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT '',
				joined_at TEXT NOT NULL,
				PRIMARY KEY (task_id, agent_id)
			)`,
		},
	},
	{
		Version:     4,
		Description: "notification bus",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				recipient TEXT NOT NULL DEFAULT '',
				task_id TEXT NOT NULL DEFAULT '',
				kind TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TEXT NOT NULL,
				read_flag INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read ON notifications(recipient, read_flag)`,
			`CREATE TABLE IF NOT EXISTS notification_counts (
				task_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				count INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (task_id, kind)
			)`,
			`CREATE TABLE IF NOT EXISTS notification_reads (
				notification_id INTEGER NOT NULL,
				agent_id TEXT NOT NULL,
				read_at TEXT NOT NULL,
				PRIMARY KEY (notification_id, agent_id)
			)`,
		},
	},
	{
		Version:     5,
		Description: "core-loop fields: success criteria, deadlines, time tracking, summaries, feedback, progress",
		Statements: []string{
			`ALTER TABLE tasks ADD COLUMN success_criteria TEXT`,
			`ALTER TABLE tasks ADD COLUMN deadline TEXT`,
			`ALTER TABLE tasks ADD COLUMN estimated_hours REAL`,
			`ALTER TABLE tasks ADD COLUMN actual_hours REAL`,
			`ALTER TABLE tasks ADD COLUMN completion_summary TEXT`,
			`ALTER TABLE tasks ADD COLUMN feedback_quality INTEGER`,
			`ALTER TABLE tasks ADD COLUMN feedback_timeliness INTEGER`,
			`ALTER TABLE tasks ADD COLUMN feedback_notes TEXT`,
			`ALTER TABLE tasks ADD COLUMN rework_of TEXT`,
			`CREATE TABLE IF NOT EXISTS progress_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_id TEXT NOT NULL,
				agent_id TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_progress_task ON progress_entries(task_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS feedback (
				task_id TEXT PRIMARY KEY,
				quality INTEGER,
				timeliness INTEGER,
				notes TEXT,
				created_at TEXT NOT NULL
			)`,
		},
	},
	{
		Version:     6,
		Description: "cancellation reason (supplements the distilled spec)",
		Statements: []string{
			`ALTER TABLE tasks ADD COLUMN cancel_reason TEXT`,
		},
	},
}
