package perception

// Classification depth bands (meters).
const (
	NearDepth = 1.0
	MidDepth  = 2.0
)

// Classify maps a depth and size estimate to an obstacle type. It is purely
// geometric, so it never returns TypePerson.
func Classify(depth float64, size Size) Type {
	switch {
	case depth < NearDepth:
		switch size {
		case SizeLarge:
			return TypeWall
		case SizeMedium:
			return TypeFurniture
		default:
			return TypeObject
		}
	case depth < MidDepth:
		if size == SizeLarge {
			return TypeFurniture
		}
		return TypeObject
	default:
		return TypeObject
	}
}

// EstimateSize buckets a cell's depth variation.
func EstimateSize(variation float64, cfg Config) Size {
	switch {
	case variation > cfg.LargeVariation:
		return SizeLarge
	case variation > cfg.MediumVariation:
		return SizeMedium
	default:
		return SizeSmall
	}
}
