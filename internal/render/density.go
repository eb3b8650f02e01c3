// Package render draws flash density overlays as transparent PNG rasters.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"golang.org/x/image/draw"
)

const (
	kmPerDegree = 111.0

	// DefaultWidth is the output width in pixels.
	DefaultWidth = 2000
	// maxHeight bounds the output for very tall extents.
	maxHeight = 8000
	// DefaultAlpha matches a 0.75 overlay opacity.
	DefaultAlpha uint8 = 191
)

// Renderer bins observations into a grid and paints it as an overlay.
type Renderer struct {
	Width int
	Alpha uint8
}

// NewRenderer returns a renderer with the default output width and opacity.
func NewRenderer() *Renderer {
	return &Renderer{Width: DefaultWidth, Alpha: DefaultAlpha}
}

// Cell addresses one grid cell. X runs west to east and Y runs south to north.
type Cell struct{ X, Y int }

// Grid is a 2D histogram of flash counts. Only occupied cells are stored.
type Grid struct {
	NX, NY int
	Counts map[Cell]int
}

// GridSize returns the number of cells along longitude and latitude for an
// extent at the given resolution. Each axis has at least one cell.
func GridSize(extent domain.BoundingBox, resolutionKm float64) (nx, ny int) {
	latKm := extent.LatSpan() * kmPerDegree
	lonKm := extent.LonSpan() * kmPerDegree * math.Cos(extent.MeanLat()*math.Pi/180)
	return cells(lonKm, resolutionKm), cells(latKm, resolutionKm)
}

func cells(spanKm, resolutionKm float64) int {
	if resolutionKm <= 0 || spanKm <= 0 || math.IsNaN(spanKm) {
		return 1
	}
	return max(1, int(math.Floor(spanKm/resolutionKm)))
}

// Histogram counts observations per cell over extent. Points outside the
// extent are ignored; points on the east or north edge fall in the last cell.
func Histogram(set domain.ObservationSet, extent domain.BoundingBox, nx, ny int) Grid {
	counts := make(map[Cell]int)
	for _, o := range set {
		if !extent.Contains(o) {
			continue
		}
		x := bin(o.Lon, extent.MinLon, extent.MaxLon, nx)
		y := bin(o.Lat, extent.MinLat, extent.MaxLat, ny)
		counts[Cell{X: x, Y: y}]++
	}
	return Grid{NX: nx, NY: ny, Counts: counts}
}

func bin(v, lo, hi float64, n int) int {
	if hi <= lo {
		return 0
	}
	i := int(math.Floor((v - lo) / (hi - lo) * float64(n)))
	return min(max(i, 0), n-1)
}

// Size returns the output dimensions for extent: a fixed width and a height
// that preserves the lon/lat aspect ratio.
func (r *Renderer) Size(extent domain.BoundingBox) (w, h int) {
	w = r.Width
	lon, lat := extent.LonSpan(), extent.LatSpan()
	if lon <= 0 {
		return w, w
	}
	h = int(math.Round(float64(w) * lat / lon))
	return w, min(max(h, 1), maxHeight)
}

// Render writes a PNG overlay for set over extent. Empty cells are fully
// transparent; an empty set yields a fully transparent image.
func (r *Renderer) Render(set domain.ObservationSet, extent domain.BoundingBox, resolutionKm float64, w io.Writer) error {
	nx, ny := GridSize(extent, resolutionKm)
	grid := Histogram(set, extent, nx, ny)

	width, height := r.Size(extent)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	r.paint(out, grid)

	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// paint fills the output pixels that nearest-neighbour sampling maps to each
// occupied cell, north at the top. Cells smaller than a pixel that no pixel
// samples are not drawn.
func (r *Renderer) paint(out *image.NRGBA, g Grid) {
	lo, hi := math.MaxInt, 0
	for _, c := range g.Counts {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	if hi == 0 {
		return
	}

	width, height := out.Bounds().Dx(), out.Bounds().Dy()
	for cell, c := range g.Counts {
		x0, x1 := pixelSpan(cell.X, g.NX, width)
		y0, y1 := pixelSpan(g.NY-1-cell.Y, g.NY, height)
		if x0 >= x1 || y0 >= y1 {
			continue
		}
		col := turbo(logNorm(float64(c), float64(lo), float64(hi)), r.Alpha)
		draw.Draw(out, image.Rect(x0, y0, x1, y1), image.NewUniform(col), image.Point{}, draw.Src)
	}
}

// pixelSpan returns the pixels [p0, p1) of an axis of size pixels whose
// nearest-neighbour sample among n cells is cell i. Pixel p samples cell
// (2p+1)*n / (2*size).
func pixelSpan(i, n, size int) (p0, p1 int) {
	first := func(i int) int {
		a := 2*i*size - n
		if a <= 0 {
			return 0
		}
		return min((a+2*n-1)/(2*n), size)
	}
	return first(i), first(i + 1)
}
