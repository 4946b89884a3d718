package server

import (
	"encoding/json"

	"inductionlog/internal/domain"
	"inductionlog/internal/repo"
)

// Request payloads

type CreateLogRequest struct {
	ID   string           `json:"id,omitempty"`
	Data *domain.FormData `json:"data,omitempty"`
}

type SetFieldRequest struct {
	Section string `json:"section" example:"mentorMeetings"`
	Index   int    `json:"index,omitempty" minimum:"0"`
	Field   string `json:"field" example:"topic"`
	Value   string `json:"value"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"admin,mentor,mentee"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" doc:"admin, mentor or mentee; teacher is read as mentee. Other roles get a read-only token."`
}

// Response payloads

type LogResponse struct {
	ID        string          `json:"id"`
	CreatedBy string          `json:"created_by"`
	CreatedAt string          `json:"created_at" format:"date-time"`
	UpdatedAt string          `json:"updated_at" format:"date-time"`
	Data      domain.FormData `json:"data"`
}

type paginatedLogs struct {
	Items []domain.LogSummary `json:"items"`
}

type CanEditResponse struct {
	Role    string `json:"role"`
	Section string `json:"section"`
	Field   string `json:"field"`
	Allowed bool   `json:"allowed"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	LogID      string         `json:"log_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Source  string `json:"source"`
}

type CreateAPIKeyResponse struct {
	// Key is shown once; the server keeps only its hash.
	Key string `json:"key"`
	domain.APIKey
}

type paginatedAPIKeys struct {
	Items []domain.APIKey `json:"items"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func logResponse(l repo.LogRecord) LogResponse {
	return LogResponse{
		ID:        l.ID,
		CreatedBy: l.CreatedBy,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
		Data:      l.Data,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		LogID:      e.LogID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
