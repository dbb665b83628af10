package math3d

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func matApproxEqual(a, b Mat4, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func TestInverseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", Identity()},
		{"translate", Translate(V3(3, -2, 7))},
		{"trs", TRS(V3(1, 2, 3), V3(30, 45, 60), V3(2, 0.5, 3))},
		{"view", LookAt(V3(1, 1, 3), V3(0, 0, 0), Up())},
		{"perspective", Perspective(Deg2Rad(90), 1, 0.1, 50)},
		{"needs pivot", Mat4{0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.m.Inverse()
			if err != nil {
				t.Fatalf("Inverse() error = %v", err)
			}
			if got := tt.m.Mul(inv); !matApproxEqual(got, Identity(), tolerance) {
				t.Errorf("M·inv(M) = %v, want identity", got)
			}
			if got := inv.Mul(tt.m); !matApproxEqual(got, Identity(), tolerance) {
				t.Errorf("inv(M)·M = %v, want identity", got)
			}
		})
	}
}

func TestInverseSingular(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"zero", Mat4{}},
		{"zero scale", Scale(V3(1, 0, 1))},
		{"duplicate rows", Mat4{
			1, 1, 0, 0,
			2, 2, 0, 0,
			3, 3, 1, 0,
			4, 4, 0, 1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.Inverse()
			if !errors.Is(err, ErrSingular) {
				t.Errorf("Inverse() error = %v, want ErrSingular", err)
			}
		})
	}
}

func TestEulerXYZ(t *testing.T) {
	tests := []struct {
		name  string
		angle Vec3
		in    Vec3
		want  Vec3
	}{
		{"identity", V3(0, 0, 0), V3(1, 2, 3), V3(1, 2, 3)},
		{"x quarter turn", V3(90, 0, 0), V3(0, 1, 0), V3(0, 0, 1)},
		{"y quarter turn", V3(0, 90, 0), V3(0, 0, 1), V3(1, 0, 0)},
		{"z quarter turn", V3(0, 0, 90), V3(1, 0, 0), V3(0, 1, 0)},
		// Y applies before X: +X → -Z → +Y
		{"y then x", V3(90, 90, 0), V3(1, 0, 0), V3(0, 1, 0)},
		{"half turn", V3(0, 180, 0), V3(1, 0, 0), V3(-1, 0, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EulerXYZ(tc.angle).MulVec3(tc.in)
			if got.Sub(tc.want).Len() > tolerance {
				t.Errorf("EulerXYZ(%v)·%v = %v, want %v", tc.angle, tc.in, got, tc.want)
			}
		})
	}
}

func TestRotateZQuarterTurn(t *testing.T) {
	got := EulerXYZ(V3(0, 0, 90)).MulVec3(V3(1, 0, 0))
	if math.Abs(got.X) > tolerance || math.Abs(got.Y-1) > tolerance {
		t.Errorf("rotating +X by 90° about Z = %v, want (0,1,0)", got)
	}
}

func TestTRSOrder(t *testing.T) {
	m := TRS(V3(10, 0, 0), V3(0, 0, 90), V3(2, 2, 2))
	got := m.MulVec3(V3(1, 0, 0))
	// scale to (2,0,0), rotate to (0,2,0), translate to (10,2,0)
	want := V3(10, 2, 0)
	if got.Sub(want).Len() > tolerance {
		t.Errorf("TRS point = %v, want %v", got, want)
	}
}

func TestDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(V3(5, 5, 5))
	d := m.MulVec4(Direction(V3(0, 1, 0)))
	if d != V4(0, 1, 0, 0) {
		t.Errorf("direction moved by translation: %v", d)
	}
	p := m.MulVec4(Point(V3(0, 1, 0)))
	if p != V4(5, 6, 5, 1) {
		t.Errorf("point = %v, want (5,6,5,1)", p)
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A plane tilted 45° in XY, stretched along X.
	m := Scale(V3(4, 1, 1))
	nm, err := NormalMatrix(m)
	if err != nil {
		t.Fatalf("NormalMatrix() error = %v", err)
	}

	tangent := V3(1, -1, 0)
	normal := V3(1, 1, 0)

	tw := m.MulVec3Dir(tangent)
	nw := nm.MulVec3Dir(normal)
	if d := tw.Dot(nw); math.Abs(d) > tolerance {
		t.Errorf("transformed normal not perpendicular to surface: dot = %v", d)
	}

	if nm[12] != 0 || nm[13] != 0 || nm[14] != 0 {
		t.Errorf("normal matrix carries translation: %v", nm.Translation())
	}
}

func TestNormalMatrixSingular(t *testing.T) {
	_, err := NormalMatrix(Scale(V3(0, 1, 1)))
	if !errors.Is(err, ErrSingular) {
		t.Errorf("NormalMatrix() error = %v, want ErrSingular", err)
	}
}

func TestPerspectiveDepthConvention(t *testing.T) {
	near, far := 0.1, 50.0
	proj := Perspective(Deg2Rad(90), 1, near, far)

	tests := []struct {
		name  string
		z     float64
		wantZ float64
	}{
		{"near plane", -near, 1},
		{"far plane", -far, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := proj.MulVec4(V4(0, 0, tt.z, 1))
			ndc := clip.PerspectiveDivide()
			if math.Abs(ndc.Z-tt.wantZ) > 1e-9 {
				t.Errorf("ndc.z = %v, want %v", ndc.Z, tt.wantZ)
			}
			if math.Abs(math.Abs(clip.W)-math.Abs(tt.z)) > 1e-12 {
				t.Errorf("|w| = %v, want %v", math.Abs(clip.W), math.Abs(tt.z))
			}
		})
	}

	mid := proj.MulVec4(V4(0, 0, -1, 1)).PerspectiveDivide().Z
	nearer := proj.MulVec4(V4(0, 0, -0.5, 1)).PerspectiveDivide().Z
	if nearer <= mid {
		t.Errorf("nearer point depth %v should exceed farther %v", nearer, mid)
	}

	// The edge of a 90° frustum at distance 1 lands on ndc.x = 1.
	edge := proj.MulVec4(V4(1, 0, -1, 1)).PerspectiveDivide()
	if math.Abs(edge.X-1) > 1e-9 {
		t.Errorf("frustum edge ndc.x = %v, want 1", edge.X)
	}
}

func TestOrthographicDepth(t *testing.T) {
	m := Orthographic(-2, 2, -2, 2, 0, -4)
	if got := m.MulVec4(V4(0, 0, 0, 1)).Z; math.Abs(got-1) > tolerance {
		t.Errorf("z=0 maps to %v, want 1", got)
	}
	if got := m.MulVec4(V4(0, 0, -4, 1)).Z; math.Abs(got) > tolerance {
		t.Errorf("z=-4 maps to %v, want 0", got)
	}
	if got := m.MulVec4(V4(2, -2, 0, 1)); math.Abs(got.X-1) > tolerance || math.Abs(got.Y+1) > tolerance {
		t.Errorf("corner maps to %v, want (1,-1)", got)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := V3(0, 0, 0).Normalize(); got != (Vec3{}) {
		t.Errorf("Vec3 zero normalize = %v", got)
	}
	if got := V4(1e-14, 0, 0, 0).Normalize(); got != (Vec4{}) {
		t.Errorf("Vec4 tiny normalize = %v", got)
	}
	got := V3(3, 0, 4).Normalize()
	if math.Abs(got.Len()-1) > tolerance {
		t.Errorf("normalized length = %v", got.Len())
	}
}

func TestVec4Cross(t *testing.T) {
	got := Direction(V3(1, 0, 0)).Cross(Direction(V3(0, 1, 0)))
	if got != V4(0, 0, 1, 0) {
		t.Errorf("X×Y = %v, want (0,0,1,0)", got)
	}
}
