package math3d

import "fmt"

// EulerXYZ returns Rx(x)·Ry(y)·Rz(z) for angles in degrees. Applied to a
// column vector, Z rotates first, then Y, then X, all about the fixed world
// axes.
func EulerXYZ(deg Vec3) Mat4 {
	return RotateX(Deg2Rad(deg.X)).
		Mul(RotateY(Deg2Rad(deg.Y))).
		Mul(RotateZ(Deg2Rad(deg.Z)))
}

// TRS builds Translate(t)·EulerXYZ(rotDeg)·Scale(s).
func TRS(t, rotDeg, s Vec3) Mat4 {
	return Translate(t).Mul(EulerXYZ(rotDeg)).Mul(Scale(s))
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 block of m
// with zero translation, for transforming direction vectors that must stay
// perpendicular to surfaces under non-uniform scale.
func NormalMatrix(m Mat4) (Mat4, error) {
	inv, err := m.Upper3().Inverse()
	if err != nil {
		return Mat4{}, fmt.Errorf("normal matrix: %w", err)
	}
	return inv.Transpose(), nil
}
