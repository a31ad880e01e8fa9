package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/docmind/internal/document"
	"github.com/kalambet/docmind/internal/extract"
	"github.com/kalambet/docmind/internal/storage"
)

type createDocumentRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required_without=File"`
	// Type and File carry an uploaded body: File is base64 and Type is
	// "text" or "pdf".
	Type string `json:"type" validate:"omitempty,oneof=text pdf"`
	File string `json:"file"`
}

type updateDocumentRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin editor viewer"`
}

type pageJSON struct {
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalDocs  int            `json:"totalDocs"`
	TotalPages int            `json:"totalPages"`
	Docs       []documentJSON `json:"docs"`
}

func toPageJSON(p document.Page) pageJSON {
	return pageJSON{
		Page:       p.Page,
		Limit:      p.Limit,
		TotalDocs:  p.TotalDocs,
		TotalPages: p.TotalPages,
		Docs:       toDocumentsJSON(p.Docs),
	}
}

func handleCreateDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDocumentRequest
		if !decodeBody(w, r, maxDocumentBodySize, &req) {
			return
		}

		content := req.Content
		if req.File != "" {
			text, err := extract.Decode(req.Type, req.File)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			content = text
		}

		doc, err := deps.Documents.Create(currentUser(r), req.Title, content)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDocumentJSON(doc))
	}
}

func pageParams(r *http.Request) (int, int) {
	return parseIntParam(r, "page", 1, 0), parseIntParam(r, "limit", document.DefaultPageSize, document.MaxPageSize)
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pageParams(r)
		p, err := deps.Documents.List(page, limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPageJSON(p))
	}
}

func handleListMyDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := pageParams(r)
		p, err := deps.Documents.ListMine(currentUser(r), page, limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPageJSON(p))
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.Get(chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentJSON(doc))
	}
}

func handleUpdateDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateDocumentRequest
		if !decodeBody(w, r, maxDocumentBodySize, &req) {
			return
		}
		doc, err := deps.Documents.Update(currentUser(r), chi.URLParam(r, "id"),
			storage.DocumentPatch{Title: req.Title, Content: req.Content})
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Document updated",
			"doc":     toDocumentJSON(doc),
		})
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Documents.Delete(currentUser(r), chi.URLParam(r, "id")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
	}
}

func handleRegenerate(deps Deps, what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var err error
		if what == "summary" {
			err = deps.Documents.RegenerateSummary(currentUser(r), id)
		} else {
			err = deps.Documents.RegenerateTags(currentUser(r), id)
		}
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"_id":      id,
			"message":  "Regenerating " + what,
			"aiStatus": storage.AIStatusPending,
		})
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := deps.Documents.History(chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toVersionsJSON(versions))
	}
}

func handleRecentActivity(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := deps.Documents.RecentActivity()
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityJSON(feed))
	}
}

func handleRecentActivityForDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := deps.Documents.RecentActivityForDocument(chi.URLParam(r, "docId"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityJSON(feed))
	}
}

func handleAddMember(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addMemberRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		members, err := deps.Documents.AddMember(currentUser(r), chi.URLParam(r, "id"), req.Email, req.Role)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Member added",
			"members": document.MemberViews(members),
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
