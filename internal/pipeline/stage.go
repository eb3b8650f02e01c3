package pipeline

import (
	"errors"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

// ErrStopped is returned by a stage when its consumer stopped accepting events.
var ErrStopped = errors.New("pipeline: consumer stopped")

// Emit delivers a progress event to the consumer. It returns false when the
// consumer has stopped and the stage should return ErrStopped.
type Emit func(domain.Event) bool

func (e Emit) progress(status string, pct int) error {
	if !e(domain.Progress(status, pct)) {
		return ErrStopped
	}
	return nil
}
