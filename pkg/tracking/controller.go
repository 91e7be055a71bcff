package tracking

// Pose is a 2D sprite transform in display coordinates.
type Pose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"` // Radians, clockwise on screen
	Scale    float64 `json:"scale"`
}

// Lerp moves start toward end by amt: (1-amt)*start + amt*end.
func Lerp(start, end, amt float64) float64 {
	return (1-amt)*start + amt*end
}

// LerpAngle moves start toward end by amt along the shorter arc.
// The result is not wrapped, so it stays continuous across ±π.
func LerpAngle(start, end, amt float64) float64 {
	return start + amt*NormalizeAngle(end-start)
}

// Smooth advances rendered one smoothing step toward target. Each channel is
// interpolated independently. With raw set, rotation interpolates the plain
// angle difference and may take the long way around.
func Smooth(rendered, target Pose, alpha float64, raw bool) Pose {
	next := Pose{
		X:     Lerp(rendered.X, target.X, alpha),
		Y:     Lerp(rendered.Y, target.Y, alpha),
		Scale: Lerp(rendered.Scale, target.Scale, alpha),
	}
	if raw {
		next.Rotation = Lerp(rendered.Rotation, target.Rotation, alpha)
	} else {
		next.Rotation = LerpAngle(rendered.Rotation, target.Rotation, alpha)
	}
	return next
}
