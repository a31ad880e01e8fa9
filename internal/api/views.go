package api

import (
	"time"

	"github.com/kalambet/docmind/internal/document"
	"github.com/kalambet/docmind/internal/retrieval"
	"github.com/kalambet/docmind/internal/storage"
)

type documentJSON struct {
	ID         string                `json:"_id"`
	Title      string                `json:"title"`
	Content    string                `json:"content"`
	Summary    string                `json:"summary,omitempty"`
	Tags       []string              `json:"tags"`
	AIStatus   string                `json:"aiStatus"`
	CreatedBy  string                `json:"createdBy"`
	Members    []document.MemberView `json:"members"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
	Similarity *float64              `json:"similarity,omitempty"`
}

func toDocumentJSON(d storage.Document) documentJSON {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentJSON{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Summary:   d.Summary,
		Tags:      tags,
		AIStatus:  d.AIStatus,
		CreatedBy: d.CreatedBy,
		Members:   document.MemberViews(d.Members),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toDocumentsJSON(docs []storage.Document) []documentJSON {
	out := make([]documentJSON, len(docs))
	for i, d := range docs {
		out[i] = toDocumentJSON(d)
	}
	return out
}

func toResultsJSON(results []retrieval.Result) []documentJSON {
	out := make([]documentJSON, len(results))
	for i, r := range results {
		out[i] = toDocumentJSON(r.Document)
		out[i].Similarity = r.Similarity
	}
	return out
}

type userRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type versionJSON struct {
	ID        string    `json:"_id"`
	Document  string    `json:"document"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags"`
	AIStatus  string    `json:"aiStatus"`
	EditedBy  *userRef  `json:"editedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toVersionsJSON(vs []storage.Version) []versionJSON {
	out := make([]versionJSON, len(vs))
	for i, v := range vs {
		out[i] = versionJSON{
			ID:        v.ID,
			Document:  v.DocumentID,
			Title:     v.Title,
			Content:   v.Content,
			Summary:   v.Summary,
			Tags:      v.Tags,
			AIStatus:  v.AIStatus,
			CreatedAt: v.CreatedAt,
		}
		if v.EditedBy != "" {
			out[i].EditedBy = &userRef{ID: v.EditedBy, Name: v.EditorName, Email: v.EditorMail}
		}
	}
	return out
}

type activityJSON struct {
	VersionID string    `json:"versionId"`
	DocID     string    `json:"docId"`
	Title     string    `json:"title"`
	EditedBy  *userRef  `json:"editedBy"`
	EditedAt  time.Time `json:"editedAt"`
}

func toActivityJSON(feed []storage.Activity) []activityJSON {
	out := make([]activityJSON, len(feed))
	for i, a := range feed {
		out[i] = activityJSON{
			VersionID: a.VersionID,
			DocID:     a.DocumentID,
			Title:     a.Title,
			EditedAt:  a.EditedAt,
		}
		if a.EditorID != "" {
			out[i].EditedBy = &userRef{ID: a.EditorID, Name: a.EditorName}
		}
	}
	return out
}

type userJSON struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
