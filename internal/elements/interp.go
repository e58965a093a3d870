package elements

// Hermite evaluates the cubic Hermite interpolant between (p0, v0) and (p1, v1)
// sampled h seconds apart, at fraction s in [0, 1] of the interval. Velocities are
// per second; the returned velocity is the interpolant's derivative.
func Hermite(p0, v0, p1, v1 CartesianVector, h, s float64) (CartesianVector, CartesianVector) {
	s2, s3 := s*s, s*s*s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	d00 := 6*s2 - 6*s
	d10 := 3*s2 - 4*s + 1
	d01 := -6*s2 + 6*s
	d11 := 3*s2 - 2*s

	p := p0.Scale(h00).Add(v0.Scale(h10 * h)).Add(p1.Scale(h01)).Add(v1.Scale(h11 * h))
	v := p0.Scale(d00 / h).Add(v0.Scale(d10)).Add(p1.Scale(d01 / h)).Add(v1.Scale(d11))
	return p, v
}
