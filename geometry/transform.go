package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transformation is a rigid motion: rotation about the origin followed by a
// displacement. Use NewTransformation for the identity; the zero value is
// not a valid rotation.
type Transformation struct {
	Rotation     r3.Rotation
	Displacement r3.Vec
}

func NewTransformation() Transformation {
	return Transformation{Rotation: r3.NewRotation(0, r3.Vec{Z: 1})}
}

func Displacement(d r3.Vec) (t Transformation) {
	t = NewTransformation()
	t.Displacement = d
	return
}

// Rotation returns a rotation by angle degrees about axis.
func Rotation(angle float64, axis r3.Vec) (t Transformation) {
	t = NewTransformation()
	t.Rotation = r3.NewRotation(angle*math.Pi/180, axis)
	return
}

func (t Transformation) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Rotation.Rotate(p), t.Displacement)
}

// ApplyVector rotates a direction without displacing it.
func (t Transformation) ApplyVector(p r3.Vec) r3.Vec {
	return t.Rotation.Rotate(p)
}

// Then returns the motion that applies t followed by u.
func (t Transformation) Then(u Transformation) Transformation {
	return Transformation{
		Rotation:     r3.Rotation(quat.Mul(quat.Number(u.Rotation), quat.Number(t.Rotation))),
		Displacement: r3.Add(u.Rotation.Rotate(t.Displacement), u.Displacement),
	}
}

// SameRotation reports whether both motions rotate identically.
func (t Transformation) SameRotation(u Transformation, tol float64) bool {
	a, b := quat.Number(t.Rotation), quat.Number(u.Rotation)
	// q and -q describe the same rotation
	return quat.Abs(quat.Sub(a, b)) < tol || quat.Abs(quat.Add(a, b)) < tol
}

func (t Transformation) IsIdentity(tol float64) bool {
	return t.SameRotation(NewTransformation(), tol) && r3.Norm(t.Displacement) < tol
}

// parseTransformation reads "DISPLACED x y z" or "ROTATED angle ABOUT x y z"
// arguments (without the keyword).
func parseTransformation(keyword string, args []string) (t Transformation, err error) {
	floats := func(s []string) (v []float64, err error) {
		v = make([]float64, len(s))
		for i := range s {
			if v[i], err = strconv.ParseFloat(s[i], 64); err != nil {
				return nil, fmt.Errorf("bad number %q", s[i])
			}
		}
		return
	}
	switch keyword {
	case "DISPLACED":
		if len(args) != 3 {
			return t, fmt.Errorf("DISPLACED needs 3 coordinates")
		}
		var v []float64
		if v, err = floats(args); err != nil {
			return
		}
		return Displacement(r3.Vec{X: v[0], Y: v[1], Z: v[2]}), nil
	case "ROTATED":
		if len(args) != 5 || !strings.EqualFold(args[1], "ABOUT") {
			return t, fmt.Errorf("syntax is ROTATED angle ABOUT x y z")
		}
		var v []float64
		if v, err = floats([]string{args[0], args[2], args[3], args[4]}); err != nil {
			return
		}
		axis := r3.Vec{X: v[1], Y: v[2], Z: v[3]}
		if r3.Norm(axis) == 0 {
			return t, fmt.Errorf("rotation axis is zero")
		}
		return Rotation(v[0], axis), nil
	}
	return t, fmt.Errorf("unknown transformation %q", keyword)
}
