package types

import "time"

// TaskStatus represents the current lifecycle state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
	StatusCancelled  TaskStatus = "cancelled"
)

// Priority represents the relative urgency of a task
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ContextKind classifies an entry in a task's shared context log
type ContextKind string

const (
	ContextUpdate    ContextKind = "update"
	ContextDiscovery ContextKind = "discovery"
	ContextDecision  ContextKind = "decision"
	ContextSync      ContextKind = "sync"
)

// FileRef points a task at a location in the project tree
type FileRef struct {
	Path      string
	LineStart int
	LineEnd   int // zero when not specified
}

// Criterion is one entry of a task's success-criteria array
type Criterion struct {
	Criterion  string
	Measurable string
}

// Task represents a single unit of work in the dependency graph
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    Priority
	Assignee    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileRefs    []FileRef
	Tags        []string

	// Core-Loop fields, all nullable at the storage layer
	SuccessCriteria    []Criterion
	Deadline           *time.Time
	EstimatedHours     *float64
	ActualHours        *float64
	CompletionSummary  string
	FeedbackQuality    *int
	FeedbackTimeliness *int
	FeedbackNotes      string
	ReworkOf           string
	CancelReason       string
}

// NotificationKind enumerates the well-known notification kinds emitted by
// the core. The Notification Bus itself treats Kind as an opaque string so
// collaborators may introduce their own, but these are the kinds the core
// packages emit.
type NotificationKind string

const (
	NotifyTaskUnblocked   NotificationKind = "task_unblocked"
	NotifySyncPoint       NotificationKind = "sync_point"
	NotifyDiscovery       NotificationKind = "discovery"
	NotifyImpactReview    NotificationKind = "impact_review"
	NotifyAssignment      NotificationKind = "assignment"
	NotifyCompletion      NotificationKind = "completion"
	NotifyTruncated       NotificationKind = "notifications_truncated"
)

// Dependency is a directed edge: TaskID depends on DependsOnID
type Dependency struct {
	TaskID      string
	DependsOnID string
}

// ContextEntry is one row of a task's shared, append-only context log
type ContextEntry struct {
	ID        int64
	TaskID    string
	AgentID   string
	Kind      ContextKind
	Message   string
	CreatedAt time.Time
}

// PrivateNote is one row of an agent's private per-task note log.
// Visible only to the authoring agent.
type PrivateNote struct {
	ID        int64
	TaskID    string
	AgentID   string
	Message   string
	CreatedAt time.Time
}

// Notification is a message addressed to a specific agent, or broadcast
// when Recipient is empty
type Notification struct {
	ID        int64
	Recipient string
	TaskID    string // empty when not task-scoped
	Kind      string
	Message   string
	CreatedAt time.Time
	Read      bool
}

// ProgressEntry is one row of a task's advisory progress log
type ProgressEntry struct {
	ID        int64
	TaskID    string
	AgentID   string
	Message   string
	CreatedAt time.Time
}

// Feedback is the single feedback record attached to a completed task
type Feedback struct {
	TaskID     string
	Quality    *int
	Timeliness *int
	Notes      string
	CreatedAt  time.Time
}

// Participant records that an agent has joined a task
type Participant struct {
	TaskID   string
	AgentID  string
	Role     string
	JoinedAt time.Time
}

// TaskDetail is the aggregate view returned by show(): a task plus
// everything hung off it
type TaskDetail struct {
	Task          Task
	Deps          []string
	Dependents    []string
	ReworkOfTitle string // resolved title of ReworkOf, when set
	Progress      []ProgressEntry
	Feedback      *Feedback
}

// CriterionReport is one line of a success-criteria validation report
type CriterionReport struct {
	Criterion string
	Status    string // pass, fail, manual
	Detail    string
}

// CompletionResult is returned by a completed task operation
type CompletionResult struct {
	TaskID    string
	Unblocked []string
	Report    []CriterionReport
}

// EnforcementLevel controls how the Enforcement Gate responds to violations
type EnforcementLevel string

const (
	EnforcementStrict   EnforcementLevel = "strict"
	EnforcementStandard EnforcementLevel = "standard"
	EnforcementAdvisory EnforcementLevel = "advisory"
)

// Verdict is the outcome of an Enforcement Gate check
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictWarn  Verdict = "warn"
	VerdictBlock Verdict = "block"
)

// Violation describes one failed enforcement precondition along with
// machine-readable remediation guidance
type Violation struct {
	Category string
	Fix      string
	Example  string
}
