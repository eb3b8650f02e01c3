// Package domain models satellite lightning observations and the density
// overlay products derived from them.
//
// # Data Source
//
// Flash observations come from the Lightning Imager (LI) on Meteosat Third
// Generation, distributed by EUMETSAT as the LI-2-LFL "Lightning Flashes"
// collection (EO:EUM:DAT:0691). Each catalog product covers a short sensing
// slice (tens of seconds) and is delivered as a zip archive holding one or more
// NetCDF-4 members. A calendar day is several thousand products.
//
// # Archive Conventions
//
// Members of a product archive:
//
//	<name>_BODY_<...>.nc   the flash records (by far the largest member)
//	<name>_TRAIL_<...>.nc  metadata, quality flags, small
//
// The payload is selected as the largest .nc member by uncompressed size. This
// is a heuristic that holds for LI-2-LFL; it is not verified against a manifest
// and may pick the wrong member for other product variants.
//
// Within the payload, flashes are indexed by the "flashes" dimension and carry
// "latitude" and "longitude" variables in degrees. Both may be packed integers
// with scale_factor/add_offset attributes; [Decoder] implementations unpack them.
//
// # Density Products
//
// Two products share one pipeline and differ only in grid resolution:
//
//	daily_lowres_density   tier "lowres", 5 km cells
//	daily_hires_density    tier "hires",  1 km cells
//
// Output file names are deterministic and double as the cache key:
//
//	overlay_<tier>_<country>_<YYYY>-<MM>-<DD>.png
//
// # Progress Events
//
// A pipeline run yields a sequence of [Event] values: zero or more [InProgress]
// events followed by exactly one terminal [Failed] or [Succeeded] event.
// Terminal events always report progress 100. Progress is non-decreasing by
// convention only.
package domain
