package netcdf

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// packingParams describes CF packed-data conventions for one variable.
type packingParams struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func packing(attrs api.AttributeMap) packingParams {
	p := packingParams{scale: 1}
	if attrs == nil {
		return p
	}
	if v, ok := attrs.Get("scale_factor"); ok {
		if f, ok := scalar(v); ok {
			p.scale = f
		}
	}
	if v, ok := attrs.Get("add_offset"); ok {
		if f, ok := scalar(v); ok {
			p.offset = f
		}
	}
	if v, ok := attrs.Get("_FillValue"); ok {
		p.fill, p.hasFill = scalar(v)
	}
	return p
}

// unpack applies packing to raw values. Fill values become NaN so they are
// dropped when paired into observations.
func unpack(raw []float64, p packingParams) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if p.hasFill && v == p.fill {
			out[i] = math.NaN()
			continue
		}
		out[i] = v*p.scale + p.offset
	}
	return out
}

// scalar extracts a single number from an attribute value, which may be a
// bare number or a one-element slice.
func scalar(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	vals, err := toFloats(v)
	if err != nil || len(vals) != 1 {
		return 0, false
	}
	return vals[0], true
}

// toFloats widens a one-dimensional numeric slice to float64.
func toFloats(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []float32:
		return widen(x), nil
	case []int8:
		return widen(x), nil
	case []uint8:
		return widen(x), nil
	case []int16:
		return widen(x), nil
	case []uint16:
		return widen(x), nil
	case []int32:
		return widen(x), nil
	case []uint32:
		return widen(x), nil
	case []int64:
		return widen(x), nil
	case []uint64:
		return widen(x), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
