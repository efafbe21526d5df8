package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"syncspace/backend/internal/workspace"
)

// WorkspaceHandler exposes explicit save/load of a room snapshot.
type WorkspaceHandler struct {
	store *workspace.Store
}

// NewWorkspaceHandler wraps the persistence store.
func NewWorkspaceHandler(store *workspace.Store) *WorkspaceHandler {
	return &WorkspaceHandler{store: store}
}

// Save handles PUT /workspace/{roomId} with {fileStructure, drawingData}.
func (h *WorkspaceHandler) Save(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	var req struct {
		FileStructure json.RawMessage `json:"fileStructure"`
		DrawingData   json.RawMessage `json:"drawingData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.FileStructure) == 0 {
		http.Error(w, "fileStructure is required", http.StatusBadRequest)
		return
	}

	if err := h.store.Save(r.Context(), roomID, req.FileStructure, req.DrawingData); err != nil {
		log.Printf("Failed to save workspace for room %s: %v", roomID, err)
		http.Error(w, "Failed to save workspace", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Load handles GET /workspace/{roomId}.
func (h *WorkspaceHandler) Load(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	ws, err := h.store.Load(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			http.Error(w, "No saved workspace for this room", http.StatusNotFound)
			return
		}
		log.Printf("Failed to load workspace for room %s: %v", roomID, err)
		http.Error(w, "Failed to load workspace", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws)
}
