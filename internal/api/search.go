package api

import (
	"net/http"
)

type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=text semantic"`
}

type qaRequest struct {
	Question string `json:"question" validate:"required"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		results, err := deps.Search.Search(r.Context(), req.Query, req.Type)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResultsJSON(results))
	}
}

func handleQA(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req qaRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		ans, err := deps.QA.Ask(r.Context(), req.Question)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"answer":   ans.Answer,
			"context":  toResultsJSON(ans.Context),
			"question": ans.Question,
		})
	}
}
