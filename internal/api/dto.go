package api

import (
	"time"

	"workforce-status-backend/internal/model"
)

type stateKindResponse struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
	SortOrder    int    `json:"sort_order"`
	Active       bool   `json:"active"`
	LimitMinutes *int   `json:"limit_minutes"`
}

func newStateKindResponse(k model.StateKind) stateKindResponse {
	return stateKindResponse{
		ID:           k.ID,
		Slug:         k.Slug,
		Name:         k.Name,
		Color:        k.Color,
		Icon:         k.Icon,
		SortOrder:    k.SortOrder,
		Active:       k.Active,
		LimitMinutes: k.LimitMinutes,
	}
}

type stateConfigResponse struct {
	ID            int64     `json:"id"`
	AdvisorID     int64     `json:"advisor_id"`
	StateKindID   int64     `json:"state_kind_id"`
	Active        bool      `json:"active"`
	ColorOverride *string   `json:"color_override"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newStateConfigResponse(cfg model.AdvisorStateConfig) stateConfigResponse {
	return stateConfigResponse{
		ID:            cfg.ID,
		AdvisorID:     cfg.AdvisorID,
		StateKindID:   cfg.StateKindID,
		Active:        cfg.Active,
		ColorOverride: cfg.ColorOverride,
		UpdatedAt:     cfg.UpdatedAt,
	}
}

type occupancyResponse struct {
	ID                int64          `json:"id"`
	AdvisorID         int64          `json:"advisor_id"`
	StateKindID       int64          `json:"state_kind_id"`
	Slug              string         `json:"slug"`
	StartedAt         time.Time      `json:"started_at"`
	EndedAt           *time.Time     `json:"ended_at"`
	DurationSeconds   int64          `json:"duration_seconds"`
	LimitMinutes      *int           `json:"limit_minutes"`
	DifferenceMinutes *int           `json:"difference_minutes"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

func newOccupancyResponse(o *model.StateOccupancy) occupancyResponse {
	return occupancyResponse{
		ID:                o.ID,
		AdvisorID:         o.AdvisorID,
		StateKindID:       o.StateKindID,
		Slug:              o.StateKind.Slug,
		StartedAt:         o.StartedAt,
		EndedAt:           o.EndedAt,
		DurationSeconds:   o.DurationSeconds,
		LimitMinutes:      o.LimitMinutes,
		DifferenceMinutes: o.DifferenceMinutes,
		Metadata:          o.Metadata,
	}
}
