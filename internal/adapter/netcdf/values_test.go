package netcdf

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrs(t *testing.T, values map[string]any) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	om, err := util.NewOrderedMap(keys, values)
	require.NoError(t, err)
	return om
}

func TestToFloats(t *testing.T) {
	got, err := toFloats([]int16{-1, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 2}, got)

	got, err = toFloats([]float32{1.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, got)

	got, err = toFloats(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = toFloats([][]float32{{1}})
	assert.Error(t, err)
}

func TestUnpack_ScaleOffsetAndFill(t *testing.T) {
	p := packing(attrs(t, map[string]any{
		"scale_factor": float32(0.5),
		"add_offset":   []float64{10},
		"_FillValue":   int16(-1),
	}))

	got := unpack([]float64{0, 4, -1}, p)

	assert.InDelta(t, 10.0, got[0], 1e-9)
	assert.InDelta(t, 12.0, got[1], 1e-9)
	assert.True(t, math.IsNaN(got[2]))
}

func TestPacking_Defaults(t *testing.T) {
	p := packing(attrs(t, map[string]any{}))
	assert.Equal(t, packingParams{scale: 1}, p)
	assert.Equal(t, packingParams{scale: 1}, packing(nil))
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := NewDecoder().Decode(filepath.Join(t.TempDir(), "absent.nc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open netcdf")
}

// writeFlashFile writes a classic CDF file with packed int16 coordinates on
// the flashes dimension.
func writeFlashFile(t *testing.T, lats, lons []int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashes.nc")
	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	for _, v := range []struct {
		name string
		vals []int16
	}{{latVar, lats}, {lonVar, lons}} {
		err := w.AddVar(v.name, api.Variable{
			Values:     v.vals,
			Dimensions: []string{"flashes"},
			Attributes: attrs(t, map[string]any{
				"scale_factor": float32(0.01),
				"_FillValue":   int16(-32768),
			}),
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestDecode_PackedClassicFile(t *testing.T) {
	path := writeFlashFile(t,
		[]int16{5085, -32768, 5063},
		[]int16{435, 100, 570},
	)

	set, err := NewDecoder().Decode(path)
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.InDelta(t, 50.85, set[0].Lat, 1e-4)
	assert.InDelta(t, 4.35, set[0].Lon, 1e-4)
	assert.InDelta(t, 50.63, set[1].Lat, 1e-4)
	assert.InDelta(t, 5.70, set[1].Lon, 1e-4)
}

func TestDecode_MissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lat-only.nc")
	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddVar(latVar, api.Variable{
		Values:     []float32{50.8},
		Dimensions: []string{"flashes"},
	}))
	require.NoError(t, w.Close())

	_, err = NewDecoder().Decode(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read longitude")
}
