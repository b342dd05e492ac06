// Package sizing maps arbitrary requested dimensions onto the fixed set of
// sizes the remote generation service accepts.
package sizing

import (
	"math"

	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/model"
)

// catalog is ordered; index 0 is the default portrait size.
var catalog = [...]model.Size{
	{Width: 720, Height: 1280},
	{Width: 1280, Height: 720},
	{Width: 1024, Height: 1792},
	{Width: 1792, Height: 1024},
}

// Catalog returns a copy of the accepted sizes in catalog order.
func Catalog() []model.Size {
	out := make([]model.Size, len(catalog))
	copy(out, catalog[:])
	return out
}

// Default returns the default portrait size.
func Default() model.Size {
	return catalog[0]
}

// IsValid reports whether s is a catalog member.
func IsValid(s model.Size) bool {
	for _, c := range catalog {
		if c == s {
			return true
		}
	}
	return false
}

// Negotiate picks the catalog size closest in aspect ratio to the request.
//
// An empty requested string falls back to source. A requested string that
// does not parse yields the default portrait size. Candidates of the other
// orientation are never considered; square requests therefore resolve to the
// default.
func Negotiate(requested string, source *model.Size) (model.Size, error) {
	var want model.Size
	switch {
	case requested != "":
		parsed, err := model.ParseSize(requested)
		if err != nil {
			return Default(), nil
		}
		want = parsed
	case source != nil:
		want = *source
		if !want.Valid() {
			return Default(), nil
		}
	default:
		return model.Size{}, apperror.Configuration("no size requested and no source dimensions available")
	}
	return nearest(want), nil
}

func nearest(want model.Size) model.Size {
	ratio := want.Ratio()
	orientation := want.Orientation()

	best := catalog[0]
	bestDiff := math.Inf(1)
	for _, c := range catalog {
		if c.Orientation() != orientation {
			continue
		}
		if d := math.Abs(ratio - c.Ratio()); d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return best
}
