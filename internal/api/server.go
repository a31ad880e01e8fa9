// Package api exposes documents, search and the real-time channel over
// HTTP, and the read-only MCP tool server.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/docmind/internal/broadcast"
	"github.com/kalambet/docmind/internal/document"
	"github.com/kalambet/docmind/internal/metrics"
	"github.com/kalambet/docmind/internal/retrieval"
	"github.com/kalambet/docmind/internal/storage"
)

// DocumentService is the document lifecycle used by the handlers.
// Implemented by document.Manager.
type DocumentService interface {
	Create(author storage.User, title, content string) (storage.Document, error)
	Get(id string) (storage.Document, error)
	List(page, limit int) (document.Page, error)
	ListMine(user storage.User, page, limit int) (document.Page, error)
	Update(user storage.User, id string, patch storage.DocumentPatch) (storage.Document, error)
	Delete(user storage.User, id string) error
	RegenerateSummary(user storage.User, id string) error
	RegenerateTags(user storage.User, id string) error
	AddMember(requester storage.User, docID, targetEmail, role string) ([]storage.Member, error)
	History(docID string) ([]storage.Version, error)
	RecentActivity() ([]storage.Activity, error)
	RecentActivityForDocument(docID string) ([]storage.Activity, error)
}

// Searcher runs text and semantic searches.
type Searcher interface {
	Search(ctx context.Context, query, mode string) ([]retrieval.Result, error)
}

// Asker answers questions from the document corpus.
type Asker interface {
	Ask(ctx context.Context, question string) (retrieval.Answer, error)
}

// UserDirectory looks users up by email.
type UserDirectory interface {
	SearchUsers(query string, limit int) ([]storage.User, error)
}

// Deps holds the dependencies of the HTTP handler.
type Deps struct {
	Documents DocumentService
	Search    Searcher
	QA        Asker
	Users     UserDirectory
	Tokens    TokenVerifier
	Resolver  UserResolver
	Hub       *broadcast.Hub

	// AllowedOrigins lists the origins accepted on /ws. "*" accepts any.
	AllowedOrigins []string
}

// NewHandler returns the HTTP handler for the whole API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequireUser(deps.Tokens, deps.Resolver))

		r.Get("/auth/me", handleMe)
		r.Get("/user", handleSearchUsers(deps))
		r.Get("/ws", handleRealtime(deps))

		r.Route("/document", func(r chi.Router) {
			r.Post("/", handleCreateDocument(deps))
			r.Get("/", handleListDocuments(deps))
			r.Get("/mine", handleListMyDocuments(deps))
			r.Get("/activity/recent", handleRecentActivity(deps))
			r.Get("/activity/recent/{docId}", handleRecentActivityForDocument(deps))
			r.Get("/{id}", handleGetDocument(deps))
			r.Put("/{id}", handleUpdateDocument(deps))
			r.Delete("/{id}", handleDeleteDocument(deps))
			r.Post("/{id}/summarize", handleRegenerate(deps, "summary"))
			r.Post("/{id}/generate-tags", handleRegenerate(deps, "tags"))
			r.Get("/{id}/history", handleHistory(deps))
			r.Post("/{id}/add-member", handleAddMember(deps))
		})

		r.Post("/search/document", handleSearch(deps))
		r.Post("/qa", handleQA(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
