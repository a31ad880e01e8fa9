package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when an insert collides with a unique key.
var ErrAlreadyExists = errors.New("already exists")

// AI enrichment states of a document.
const (
	AIStatusPending   = "pending"
	AIStatusCompleted = "completed"
	AIStatusFailed    = "failed"
)

// System roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Document member roles.
const (
	MemberAdmin  = "admin"
	MemberEditor = "editor"
	MemberViewer = "viewer"
)

type User struct {
	ID        string
	Name      string
	Email     string
	Role      string // "user" or "admin"
	CreatedAt time.Time
}

// Member is a document membership edge. Name, Email and UserRole are a
// snapshot of the user taken when the member was added and may drift from
// the live users row.
type Member struct {
	UserID   string
	Name     string
	Email    string
	UserRole string
	Role     string // "admin", "editor", "viewer"
	AddedAt  time.Time
}

type Document struct {
	ID           string
	Title        string
	Content      string
	Summary      string
	Tags         []string
	Embedding    []float32
	AIStatus     string
	AIGeneration int64
	CreatedBy    string
	Members      []Member
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Version is an immutable snapshot of a document taken before a mutation.
type Version struct {
	ID         string
	DocumentID string
	Title      string
	Content    string
	Summary    string
	Tags       []string
	Embedding  []float32
	AIStatus   string
	EditedBy   string
	EditorName string
	EditorMail string
	CreatedAt  time.Time
}

// Activity is one entry of the recent edits feed. Title is empty when the
// document no longer exists.
type Activity struct {
	VersionID  string
	DocumentID string
	Title      string
	EditorID   string
	EditorName string
	EditedAt   time.Time
}

// DocumentPatch carries the optional fields of an edit.
type DocumentPatch struct {
	Title   *string
	Content *string
}

// Enrichment is the outcome of a successful AI pass. Nil fields are left
// untouched.
type Enrichment struct {
	Summary   *string
	Tags      []string
	Embedding []float32
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
