package window

// PixelPoint is a projected point mapped to drawing coordinates, origin at
// the top-left corner.
type PixelPoint struct {
	X           float64
	Temperature float64 // y of the temperature line
	Setpoint    float64 // y of the setpoint line
}

// Scale maps p onto a width x height drawing area. Time runs left to right
// over TimeDomain; temperature runs bottom to top over TempDomain.
func Scale(p Projection, width, height float64) []PixelPoint {
	xd := p.TimeDomain
	if xd.Span() <= 0 {
		xd = Domain{Min: float64(-p.HorizonSeconds) * 1000, Max: 0}
	}
	out := make([]PixelPoint, len(p.Points))
	for i, pt := range p.Points {
		out[i] = PixelPoint{
			X:           ScaleX(xd, float64(pt.DeltaMs), width),
			Temperature: ScaleY(p.TempDomain, pt.Temperature, height),
			Setpoint:    ScaleY(p.TempDomain, pt.Setpoint, height),
		}
	}
	return out
}

// ScaleX maps v in d linearly to [0, width].
func ScaleX(d Domain, v, width float64) float64 {
	if d.Span() <= 0 {
		return width
	}
	return (v - d.Min) / d.Span() * width
}

// ScaleY maps v in d linearly to [height, 0], so larger values sit higher.
func ScaleY(d Domain, v, height float64) float64 {
	if d.Span() <= 0 {
		return height / 2
	}
	return height - (v-d.Min)/d.Span()*height
}
