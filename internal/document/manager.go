// Package document owns the document lifecycle: creation, edits with
// version snapshots, membership, and the asynchronous AI enrichment state
// machine (pending, completed, failed).
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/docmind/internal/storage"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Pagination defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// ActivityLimit is the size of the recent edits feed.
	ActivityLimit = 5
)

// Store is the persistence contract of the lifecycle manager.
type Store interface {
	InsertDocument(d storage.Document) error
	GetDocument(id string) (storage.Document, error)
	ListDocuments(offset, limit int) ([]storage.Document, int, error)
	ListDocumentsForUser(userID string, offset, limit int) ([]storage.Document, int, error)
	UpdateDocument(id string, patch storage.DocumentPatch, editorID, versionID string, now time.Time) (storage.Document, bool, error)
	DeleteDocument(id string) error

	BeginEnrichment(id string) (int64, error)
	CompleteEnrichment(id string, generation int64, e storage.Enrichment) (bool, error)
	FailEnrichment(id string, generation int64) (bool, error)

	AddMember(docID string, m storage.Member) error
	ListMembers(docID string) ([]storage.Member, error)
	ListVersions(docID string) ([]storage.Version, error)
	RecentActivity(docID string, limit int) ([]storage.Activity, error)

	GetUserByEmail(email string) (storage.User, error)
}

// Publisher pushes a partial document to the subscribers of its room.
type Publisher interface {
	Publish(room string, data map[string]any)
}

// Scheduler queues background work.
type Scheduler interface {
	Enqueue(jobType string, payload any, maxAttempts int) error
}

// Page is one page of a document listing.
type Page struct {
	Page       int
	Limit      int
	TotalDocs  int
	TotalPages int
	Docs       []storage.Document
}

// Manager coordinates the document store, AI enrichment and broadcasts.
type Manager struct {
	store     Store
	ai        Enricher
	publisher Publisher
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a Manager. Enrichment tasks go to scheduler; the
// worker draining it should call HandleJob.
func NewManager(store Store, ai Enricher, publisher Publisher, scheduler Scheduler) *Manager {
	return &Manager{
		store:     store,
		ai:        ai,
		publisher: publisher,
		scheduler: scheduler,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

func mapStoreErr(err error, what, id string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%w: %s %s", ErrAlreadyExists, what, id)
	}
	return err
}

// Create stores a new pending document with author as its sole admin member
// and schedules a full enrichment. It does not wait for the AI provider.
func (m *Manager) Create(author storage.User, title, content string) (storage.Document, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return storage.Document{}, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}

	now := m.now().UTC()
	doc := storage.Document{
		ID:           uuid.NewString(),
		Title:        title,
		Content:      content,
		Tags:         []string{},
		AIStatus:     storage.AIStatusPending,
		AIGeneration: 1,
		CreatedBy:    author.ID,
		Members: []storage.Member{{
			UserID:   author.ID,
			Name:     author.Name,
			Email:    author.Email,
			UserRole: author.Role,
			Role:     storage.MemberAdmin,
			AddedAt:  now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.InsertDocument(doc); err != nil {
		return storage.Document{}, fmt.Errorf("creating document: %w", err)
	}
	m.logger.Info("document created", "doc_id", doc.ID, "created_by", author.ID)

	m.schedule(doc.ID, KindFull, doc.AIGeneration)
	return doc, nil
}

// Get returns a document with its members.
func (m *Manager) Get(id string) (storage.Document, error) {
	doc, err := m.store.GetDocument(id)
	if err != nil {
		return storage.Document{}, mapStoreErr(err, "document", id)
	}
	return doc, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func newPage(page, limit, total int, docs []storage.Document) Page {
	return Page{
		Page:       page,
		Limit:      limit,
		TotalDocs:  total,
		TotalPages: (total + limit - 1) / limit,
		Docs:       docs,
	}
}

// List returns one page of all documents, newest first.
func (m *Manager) List(page, limit int) (Page, error) {
	page, limit = normalizePage(page, limit)
	docs, total, err := m.store.ListDocuments((page-1)*limit, limit)
	if err != nil {
		return Page{}, fmt.Errorf("listing documents: %w", err)
	}
	return newPage(page, limit, total, docs), nil
}

// ListMine returns one page of the documents user created or was added to.
func (m *Manager) ListMine(user storage.User, page, limit int) (Page, error) {
	page, limit = normalizePage(page, limit)
	docs, total, err := m.store.ListDocumentsForUser(user.ID, (page-1)*limit, limit)
	if err != nil {
		return Page{}, fmt.Errorf("listing documents for %s: %w", user.ID, err)
	}
	return newPage(page, limit, total, docs), nil
}

// Update applies patch. When the title or content changes, the previous
// state is recorded as a version first. Edits do not re-run enrichment.
func (m *Manager) Update(user storage.User, id string, patch storage.DocumentPatch) (storage.Document, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return storage.Document{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return storage.Document{}, fmt.Errorf("%w: content cannot be empty", ErrInvalidInput)
	}

	cur, err := m.Get(id)
	if err != nil {
		return storage.Document{}, err
	}
	if !CanMutate(cur, user) {
		return storage.Document{}, fmt.Errorf("%w: not authorized to edit this document", ErrForbidden)
	}

	doc, changed, err := m.store.UpdateDocument(id, patch, user.ID, uuid.NewString(), m.now().UTC())
	if err != nil {
		return storage.Document{}, mapStoreErr(err, "document", id)
	}
	if changed {
		m.logger.Info("document updated", "doc_id", id, "edited_by", user.ID)
		m.publisher.Publish(id, map[string]any{
			"_id":       id,
			"title":     doc.Title,
			"content":   doc.Content,
			"updatedAt": doc.UpdatedAt,
		})
	}
	return doc, nil
}

// Delete removes a document. Its version history is kept.
func (m *Manager) Delete(user storage.User, id string) error {
	cur, err := m.Get(id)
	if err != nil {
		return err
	}
	if !CanMutate(cur, user) {
		return fmt.Errorf("%w: not authorized to delete this document", ErrForbidden)
	}
	if err := m.store.DeleteDocument(id); err != nil {
		return mapStoreErr(err, "document", id)
	}
	m.logger.Info("document deleted", "doc_id", id, "deleted_by", user.ID)
	m.publisher.Publish(id, map[string]any{"_id": id, "deleted": true})
	return nil
}

// AddMember adds the user with targetEmail to the document with role. Only
// the creator or an admin member may do so.
func (m *Manager) AddMember(requester storage.User, docID, targetEmail, role string) ([]storage.Member, error) {
	targetEmail = strings.TrimSpace(targetEmail)
	if targetEmail == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !validMemberRole(role) {
		return nil, fmt.Errorf("%w: invalid member role %q", ErrInvalidInput, role)
	}

	doc, err := m.Get(docID)
	if err != nil {
		return nil, err
	}
	if !CanAddMember(doc, requester) {
		return nil, fmt.Errorf("%w: only the creator or an admin member can add members", ErrForbidden)
	}

	target, err := m.store.GetUserByEmail(targetEmail)
	if err != nil {
		return nil, mapStoreErr(err, "user", targetEmail)
	}
	for _, mem := range doc.Members {
		if mem.UserID == target.ID {
			return nil, fmt.Errorf("%w: %s is already a member", ErrAlreadyExists, targetEmail)
		}
	}

	err = m.store.AddMember(docID, storage.Member{
		UserID:   target.ID,
		Name:     target.Name,
		Email:    target.Email,
		UserRole: target.Role,
		Role:     role,
		AddedAt:  m.now().UTC(),
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: %s is already a member", ErrAlreadyExists, targetEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("adding member: %w", err)
	}

	members, err := m.store.ListMembers(docID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	m.publisher.Publish(docID, map[string]any{"_id": docID, "members": MemberViews(members)})
	return members, nil
}

// History returns the versions of a document, newest first. History stays
// available after the document is deleted.
func (m *Manager) History(docID string) ([]storage.Version, error) {
	versions, err := m.store.ListVersions(docID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return versions, nil
}

// RecentActivity returns the latest edits across all documents.
func (m *Manager) RecentActivity() ([]storage.Activity, error) {
	return m.activity("")
}

// RecentActivityForDocument returns the latest edits of one document.
func (m *Manager) RecentActivityForDocument(docID string) ([]storage.Activity, error) {
	return m.activity(docID)
}

func (m *Manager) activity(docID string) ([]storage.Activity, error) {
	feed, err := m.store.RecentActivity(docID, ActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	for i := range feed {
		if feed[i].Title == "" {
			feed[i].Title = "Untitled"
		}
	}
	return feed, nil
}
