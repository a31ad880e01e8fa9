package document

import (
	"time"

	"github.com/kalambet/docmind/internal/storage"
)

// MemberUser is the user snapshot stored on a membership edge.
type MemberUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// MemberView is the wire form of a membership edge.
type MemberView struct {
	User    MemberUser `json:"user"`
	Role    string     `json:"role"`
	AddedAt time.Time  `json:"addedAt"`
}

// MemberViews converts store members to their wire form.
func MemberViews(ms []storage.Member) []MemberView {
	out := make([]MemberView, len(ms))
	for i, m := range ms {
		out[i] = MemberView{
			User:    MemberUser{ID: m.UserID, Name: m.Name, Email: m.Email, Role: m.UserRole},
			Role:    m.Role,
			AddedAt: m.AddedAt,
		}
	}
	return out
}
