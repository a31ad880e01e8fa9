package document

import "github.com/kalambet/docmind/internal/storage"

// CanMutate reports whether user may edit or delete doc: system admins and
// the document's creator. Per-document member roles are not consulted.
func CanMutate(doc storage.Document, user storage.User) bool {
	if user.ID == "" {
		return false
	}
	return user.Role == storage.RoleAdmin || doc.CreatedBy == user.ID
}

// CanAddMember reports whether user may add members to doc: the creator or
// a member with the admin role.
func CanAddMember(doc storage.Document, user storage.User) bool {
	if user.ID == "" {
		return false
	}
	if doc.CreatedBy == user.ID {
		return true
	}
	for _, m := range doc.Members {
		if m.UserID == user.ID && m.Role == storage.MemberAdmin {
			return true
		}
	}
	return false
}

func validMemberRole(role string) bool {
	switch role {
	case storage.MemberAdmin, storage.MemberEditor, storage.MemberViewer:
		return true
	}
	return false
}
