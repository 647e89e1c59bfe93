package server

import (
	"controlroom/internal/domain"
	"controlroom/internal/engine"
	"controlroom/internal/scheduler"
	"controlroom/internal/snapshot"
)

// Request payloads

type TransitionRequest struct {
	Version int64  `json:"version,omitempty" doc:"Expected decision version; 0 skips the check"`
	Note    string `json:"note,omitempty"`
}

type AlertActionRequest struct {
	Type domain.AlertActionType `json:"type" enum:"acknowledge,dismiss,open_decision,review_decisions,approve,reject,simulate,refresh_feed"`
}

type RecordActualRequest struct {
	RevenueImpact float64 `json:"revenueImpact"`
	RASMImpact    float64 `json:"rasmImpact"`
}

type OptimizerRunRequest struct {
	Objective string `json:"objective,omitempty" doc:"Optimization objective, defaults to rasm"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string   `json:"actor_id"`
	Name    string   `json:"name,omitempty"`
	Roles   []string `json:"roles,omitempty" doc:"Restrict the key to these of the actor's roles"`
}

// Responses

type DevLoginResponse struct {
	Token string `json:"token"`
}

type CreateAPIKeyResponse struct {
	ID      string   `json:"id"`
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
	Key     string   `json:"key" doc:"Plain key, shown once"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type paginatedDecisions struct {
	Items      []domain.Decision `json:"items"`
	NextOffset *int              `json:"next_offset,omitempty"`
}

type paginatedLog struct {
	Items      []domain.LogEntry `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type AccuracyResponse struct {
	Score    float64 `json:"score"`
	Settled  bool    `json:"settled" doc:"False until at least one outcome has been classified"`
	Tracking int     `json:"tracking"`
}

type FeedsResponse struct {
	Feeds     []domain.DataHealthStatus `json:"feeds"`
	Optimizer *snapshot.OptimizerStatus `json:"optimizer,omitempty"`
}

type RefreshResponse struct {
	Epoch  uint64             `json:"epoch"`
	Stale  bool               `json:"stale"`
	Report engine.ApplyReport `json:"report"`
}

func refreshResponse(out scheduler.Outcome) RefreshResponse {
	return RefreshResponse{Epoch: out.Epoch, Stale: out.Stale, Report: out.Report}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
