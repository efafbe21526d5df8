package handlers

import (
	"encoding/json"
	"net/http"

	"syncspace/backend/internal/execute"
)

// ExecuteHandler proxies execution requests to the sandbox collaborator so
// browser clients never talk to it directly.
type ExecuteHandler struct {
	client *execute.Client
}

// NewExecuteHandler builds the proxy around a sandbox client.
func NewExecuteHandler(client *execute.Client) *ExecuteHandler {
	return &ExecuteHandler{client: client}
}

// ServeHTTP accepts {language, version, files:[{name, content}]} and returns
// the structured {compile?, run?} result. A sandbox failure comes back as a
// 200 with a synthetic result; the caller always gets something renderable.
func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
		Version  string `json:"version"`
		Files    []struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Language == "" || len(req.Files) == 0 {
		http.Error(w, "Language and at least one file are required", http.StatusBadRequest)
		return
	}

	result := h.client.Run(r.Context(), req.Language, req.Files[0].Content, req.Version)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
