package models

import "github.com/google/uuid"

// StageType defines how a stage behaves when it becomes current. Stage
// transitions are the only implicit trigger for animation state.
type StageType string

const (
	StageTypePresentation StageType = "PRESENTATION"
	StageTypeJuryReveal   StageType = "JURY_REVEAL"
	StageTypeAwards       StageType = "AWARDS"
	StageTypeBreak        StageType = "BREAK"
)

// Stage is the view of a stage entity this engine needs; full stage CRUD
// lives in the events service.
type Stage struct {
	ID      uuid.UUID `json:"id"`
	EventID uuid.UUID `json:"event_id"`
	Name    string    `json:"name"`
	Type    StageType `json:"type"`
}

// TeamStatus is the presentation status of a team within a round.
type TeamStatus string

const (
	TeamStatusWaiting    TeamStatus = "WAITING"
	TeamStatusPresenting TeamStatus = "PRESENTING"
	TeamStatusCompleted  TeamStatus = "COMPLETED"
)

// Team is the view of a team entity this engine needs.
type Team struct {
	ID      uuid.UUID  `json:"id"`
	EventID uuid.UUID  `json:"event_id"`
	Name    string     `json:"name"`
	Round   int        `json:"round"`
	Status  TeamStatus `json:"status"`
}
