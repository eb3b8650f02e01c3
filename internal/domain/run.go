package domain

import "time"

// Run outcomes that are not derived from an error.
const (
	OutcomeSuccess   = "success"
	OutcomeCached    = "cached"
	OutcomeAbandoned = "abandoned"
)

// RunRecord summarizes one completed pipeline run for the journal and
// downstream notifications.
type RunRecord struct {
	ID               string    `json:"id"`
	Product          string    `json:"product"`
	Country          string    `json:"country"`
	Date             string    `json:"date"`
	Outcome          string    `json:"outcome"`
	Status           string    `json:"status"`
	ResultRef        string    `json:"result_ref,omitempty"`
	Flashes          int       `json:"flashes"`
	FlashesInCountry int       `json:"flashes_in_country"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Succeeded reports whether the run produced or reused an overlay.
func (r RunRecord) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeCached
}

// Generated reports whether the run rendered a new overlay.
func (r RunRecord) Generated() bool {
	return r.Outcome == OutcomeSuccess
}
