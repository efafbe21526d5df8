// Package workspace is the persistence collaborator: it saves and loads a
// room's file tree and whiteboard snapshot on explicit user action. The
// synchronization core itself never persists anything.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a room has no saved workspace.
var ErrNotFound = errors.New("workspace not found")

// Workspace is one saved room snapshot.
type Workspace struct {
	RoomID        string          `json:"roomId"`
	FileStructure json.RawMessage `json:"fileStructure"`
	DrawingData   json.RawMessage `json:"drawingData"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Store persists workspaces in Postgres.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Save upserts the room's snapshot. Last save wins.
func (s *Store) Save(ctx context.Context, roomID string, fileStructure, drawingData json.RawMessage) error {
	query := `
		INSERT INTO workspaces (room_id, file_structure, drawing_data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (room_id) DO UPDATE SET
			file_structure = EXCLUDED.file_structure,
			drawing_data = EXCLUDED.drawing_data,
			updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, roomID, fileStructure, drawingData); err != nil {
		return fmt.Errorf("save workspace %s: %w", roomID, err)
	}
	return nil
}

// Load fetches the room's snapshot, or ErrNotFound.
func (s *Store) Load(ctx context.Context, roomID string) (Workspace, error) {
	ws := Workspace{RoomID: roomID}
	query := `SELECT file_structure, drawing_data, updated_at FROM workspaces WHERE room_id = $1`
	err := s.db.QueryRow(ctx, query, roomID).Scan(&ws.FileStructure, &ws.DrawingData, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ws, ErrNotFound
		}
		return ws, fmt.Errorf("load workspace %s: %w", roomID, err)
	}
	return ws, nil
}
