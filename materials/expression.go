package materials

import (
	"fmt"
	"math/cmplx"
	"regexp"
	"strconv"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gobem/utils"
)

// Expression is a zygomys program evaluated for a frequency w (rad/s) and
// optionally a position (x, y, z). A real w is bound as a float, a complex
// one as the array [re im]. The program result must be a number or a two
// element [re im] array.
//
// The complex helpers (complex re im), (cadd a b), (csub a b), (cmul a b),
// (cdiv a b) and (cinv a) accept floats or [re im] arrays and return [re im];
// programs meant for complex frequencies must use them for arithmetic on w.
type Expression struct {
	Source     string
	usesPos    bool
	constant   bool
	constValue complex128
}

var positionVar = regexp.MustCompile(`(^|[^A-Za-z0-9_])[xyz]($|[^A-Za-z0-9_])`)

func NewExpression(source string) (e *Expression, err error) {
	source = strings.TrimSpace(source)
	if len(source) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	e = &Expression{Source: source}
	if v, perr := strconv.ParseComplex(source, 128); perr == nil {
		e.constant, e.constValue = true, v
		return
	}
	e.usesPos = positionVar.MatchString(source)
	if _, err = e.Eval(1, r3.Vec{}); err != nil {
		return nil, fmt.Errorf("expression %q: %w", source, err)
	}
	return
}

func (e *Expression) DependsOnPosition() bool { return e != nil && e.usesPos }
func (e *Expression) IsConstant() bool        { return e.constant }

func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return e.Source
}

// Eval runs the program in a fresh sandbox for frequency w and position X.
func (e *Expression) Eval(w complex128, X r3.Vec) (v complex128, err error) {
	if e.constant {
		return e.constValue, nil
	}
	var (
		sb strings.Builder
	)
	if imag(w) == 0 {
		fmt.Fprintf(&sb, "(def w %s)\n", lispFloat(real(w)))
	} else {
		fmt.Fprintf(&sb, "(def w [%s %s])\n", lispFloat(real(w)), lispFloat(imag(w)))
	}
	fmt.Fprintf(&sb, "(def x %s)\n(def y %s)\n(def z %s)\n", lispFloat(X.X), lispFloat(X.Y), lispFloat(X.Z))
	sb.WriteString(e.Source)

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerComplexBuiltins(env)
	if err = env.LoadString(sb.String()); err != nil {
		return 0, err
	}
	result, err := env.Run()
	if err != nil {
		return 0, err
	}
	if v, err = toComplex(result); err != nil {
		return 0, fmt.Errorf("expression result: %w", err)
	}
	if cmplx.IsNaN(v) || cmplx.IsInf(v) {
		return 0, fmt.Errorf("expression evaluated to %v", v)
	}
	return
}

// lispFloat always carries a decimal point so zygomys reads a float.
func lispFloat(f float64) (s string) {
	s = strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return
}

func toComplex(s zygo.Sexp) (complex128, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return complex(float64(v.Val), 0), nil
	case *zygo.SexpFloat:
		return complex(v.Val, 0), nil
	case *zygo.SexpArray:
		if len(v.Val) != 2 {
			return 0, fmt.Errorf("complex array must have 2 elements, got %d", len(v.Val))
		}
		re, err := toComplex(v.Val[0])
		if err != nil {
			return 0, err
		}
		im, err := toComplex(v.Val[1])
		if err != nil {
			return 0, err
		}
		return complex(real(re), real(im)), nil
	}
	return 0, fmt.Errorf("expected number or [re im], got %T (%s)", s, s.SexpString(nil))
}

func fromComplex(c complex128) zygo.Sexp {
	return &zygo.SexpArray{Val: []zygo.Sexp{&zygo.SexpFloat{Val: real(c)}, &zygo.SexpFloat{Val: imag(c)}}}
}

func registerComplexBuiltins(env *zygo.Zlisp) {
	binary := func(op func(a, b complex128) complex128) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires 2 arguments, got %d", name, len(args))
			}
			a, err := toComplex(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			b, err := toComplex(args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			return fromComplex(op(a, b)), nil
		}
	}
	env.AddFunction("complex", binary(func(a, b complex128) complex128 { return complex(real(a), real(b)) }))
	env.AddFunction("cadd", binary(func(a, b complex128) complex128 { return a + b }))
	env.AddFunction("csub", binary(func(a, b complex128) complex128 { return a - b }))
	env.AddFunction("cmul", binary(func(a, b complex128) complex128 { return a * b }))
	env.AddFunction("cdiv", binary(func(a, b complex128) complex128 { return a / b }))
	env.AddFunction("cinv", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("cinv requires 1 argument, got %d", len(args))
		}
		a, err := toComplex(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cinv: %w", err)
		}
		return fromComplex(1/a), nil
	})
}

// mustEval evaluates and logs failures, returning fallback on error.
func (e *Expression) mustEval(w complex128, X r3.Vec, fallback complex128) complex128 {
	v, err := e.Eval(w, X)
	if err != nil {
		utils.Logf("evaluating %q at w=%v: %v\n", e.Source, w, err)
		return fallback
	}
	return v
}
