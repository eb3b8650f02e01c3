// Package netcdf decodes Lightning Imager flash payloads from NetCDF-4 files.
package netcdf

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

const (
	latVar = "latitude"
	lonVar = "longitude"
)

// Decoder reads flash latitude/longitude variables. Packed values are
// unpacked with their scale_factor and add_offset attributes, and fill
// values are dropped.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode opens path and returns its flashes. A file with no flashes yields
// an empty set.
func (d *Decoder) Decode(path string) (domain.ObservationSet, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}
	defer nc.Close()

	lats, err := readVariable(nc, latVar)
	if err != nil {
		return nil, err
	}
	lons, err := readVariable(nc, lonVar)
	if err != nil {
		return nil, err
	}
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("%s has %d values but %s has %d", latVar, len(lats), lonVar, len(lons))
	}
	return domain.FromCoordinates(lats, lons), nil
}

func readVariable(nc api.Group, name string) ([]float64, error) {
	vr, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	raw, err := toFloats(vr.Values)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return unpack(raw, packing(vr.Attributes)), nil
}
