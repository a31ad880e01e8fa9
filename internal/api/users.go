package api

import (
	"net/http"
	"strings"
)

const userSearchLimit = 10

func handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeJSON(w, http.StatusOK, userJSON{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

func handleSearchUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("search"))
		if q == "" {
			writeJSON(w, http.StatusOK, []userJSON{})
			return
		}
		users, err := deps.Users.SearchUsers(q, userSearchLimit)
		if err != nil {
			serviceError(w, err)
			return
		}
		out := make([]userJSON, len(users))
		for i, u := range users {
			out[i] = userJSON{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
