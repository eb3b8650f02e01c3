package domain

import "math"

// Observation is one lightning flash location in degrees.
type Observation struct {
	Lat float64
	Lon float64
}

// ObservationSet is a batch of flashes. Order carries no meaning.
type ObservationSet []Observation

// Len returns the number of observations in the set.
func (s ObservationSet) Len() int { return len(s) }

// Concat joins batches into a single set without dropping or reordering any
// observation within a batch. The inputs are not modified.
func Concat(batches ...ObservationSet) ObservationSet {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	out := make(ObservationSet, 0, n)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// FromCoordinates pairs parallel latitude and longitude slices, dropping any
// pair where either value is NaN or infinite. Extra trailing values in the
// longer slice are ignored.
func FromCoordinates(lats, lons []float64) ObservationSet {
	n := min(len(lats), len(lons))
	out := make(ObservationSet, 0, n)
	for i := range n {
		lat, lon := lats[i], lons[i]
		if !finite(lat) || !finite(lon) {
			continue
		}
		out = append(out, Observation{Lat: lat, Lon: lon})
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BoundingBox is an axis-aligned lon/lat rectangle. Edges are inclusive.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether o lies inside or on the edge of the box.
func (b BoundingBox) Contains(o Observation) bool {
	return o.Lon >= b.MinLon && o.Lon <= b.MaxLon &&
		o.Lat >= b.MinLat && o.Lat <= b.MaxLat
}

func (b BoundingBox) LonSpan() float64 { return b.MaxLon - b.MinLon }
func (b BoundingBox) LatSpan() float64 { return b.MaxLat - b.MinLat }
func (b BoundingBox) MeanLat() float64 { return (b.MinLat + b.MaxLat) / 2 }
