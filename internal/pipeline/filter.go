package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

// Filter keeps the observations that fall on region's boundary. A cheap
// bounding-box pass runs first; only its survivors get the exact test.
func Filter(ctx context.Context, set domain.ObservationSet, region domain.GeoRegion, emit Emit) (domain.ObservationSet, error) {
	if err := emit.progress(fmt.Sprintf("filtering data for %s...", region.Code), 96); err != nil {
		return nil, err
	}

	inBox := make(domain.ObservationSet, 0, set.Len()/4)
	for _, o := range set {
		if region.Bounds.Contains(o) {
			inBox = append(inBox, o)
		}
	}
	if inBox.Len() == 0 {
		return nil, &domain.EmptyResultError{Reason: domain.NoneInBounds, Country: region.Code}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inside := make(domain.ObservationSet, 0, inBox.Len())
	for _, o := range inBox {
		if region.Contains(o) {
			inside = append(inside, o)
		}
	}
	if inside.Len() == 0 {
		return nil, &domain.EmptyResultError{Reason: domain.NoneInCountry, Country: region.Code}
	}

	if err := emit.progress("data filtered.", 97); err != nil {
		return nil, err
	}
	return inside, nil
}

