package main

import (
	"fmt"
	"math"

	"github.com/couchcryptid/lightning-overlay-service/internal/adapter/netcdf"
	"github.com/couchcryptid/lightning-overlay-service/internal/pipeline"
)

type inspectCmd struct {
	Archive string `arg:"" type:"existingfile" help:"Product zip archive."`
}

// Run decodes the archive's payload and prints the flash count and extent.
func (i *inspectCmd) Run(a *app) error {
	set, err := pipeline.DecodeArchive(i.Archive, a.cfg.ScratchDir, netcdf.NewDecoder())
	if err != nil {
		return err
	}

	fmt.Printf("flashes: %d\n", set.Len())
	if set.Len() == 0 {
		return nil
	}
	minLat, minLon := math.Inf(1), math.Inf(1)
	maxLat, maxLon := math.Inf(-1), math.Inf(-1)
	for _, o := range set {
		minLat, maxLat = math.Min(minLat, o.Lat), math.Max(maxLat, o.Lat)
		minLon, maxLon = math.Min(minLon, o.Lon), math.Max(maxLon, o.Lon)
	}
	fmt.Printf("latitude:  %.4f .. %.4f\n", minLat, maxLat)
	fmt.Printf("longitude: %.4f .. %.4f\n", minLon, maxLon)
	return nil
}
