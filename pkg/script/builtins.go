package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/mesh"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source into something zygomys reads:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot collide with user variables.
//   - kebab-case identifiers become snake_case, since zygomys parses a
//     hyphen as subtraction. vertex-count therefore calls vertex_count.
//   - ; line comments become // comments.
//
// String literals and comment bodies are copied unchanged.
func preprocessSource(source string) string {
	b := []byte(source)
	out := make([]byte, 0, len(b)+len(b)/4)

	for i := 0; i < len(b); {
		switch c := b[i]; {
		case c == '"':
			j := skipQuoted(b, i, '"', true)
			out = append(out, b[i:j]...)
			i = j

		case c == '`':
			j := skipQuoted(b, i, '`', false)
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// skipQuoted returns the index just past the literal opened at b[start].
// An unterminated literal runs to the end of the input.
func skipQuoted(b []byte, start int, quote byte, escapes bool) int {
	i := start + 1
	for i < len(b) && b[i] != quote {
		if escapes && b[i] == '\\' && i+1 < len(b) {
			i++
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpMesh carries a mesh between builtins.
type sexpMesh struct {
	m *mesh.Mesh
}

func (s *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %d vertices %d faces)", s.m.VertexCount(), s.m.FaceCount())
}
func (s *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpVec3 carries a point or offset.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

// kwPrefix marks keyword names rewritten by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a rewritten keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs is a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs splits args into keyword and positional arguments. A keyword
// is followed by its value unless it ends the list. Keywords that name an
// operation (csg a b :union) stay positional when nothing follows them.
func parseArgs(args []zygo.Sexp) kwArgs {
	pa := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok || i+1 == len(args) {
			pa.positional = append(pa.positional, args[i])
			continue
		}
		pa.kw[name] = args[i+1]
		i++
	}
	return pa
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toMesh extracts a mesh. The empty list stands for no geometry and
// yields nil.
func toMesh(s zygo.Sexp) (*mesh.Mesh, error) {
	switch v := s.(type) {
	case *sexpMesh:
		return v.m, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected mesh, got %T (%s)", s, s.SexpString(nil))
}

// toOperation accepts a keyword (:union), a string ("xor") or an ordinal.
func toOperation(s zygo.Sexp) (kernel.Operation, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return kernel.ParseOperation(strconv.FormatInt(v.Val, 10))
	case *zygo.SexpStr:
		return kernel.ParseOperation(strings.TrimPrefix(v.S, kwPrefix))
	}
	return 0, fmt.Errorf("%w: expected keyword, string or ordinal, got %T", kernel.ErrInvalidOperation, s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// state collects what one evaluation produces.
type state struct {
	csg     Performer
	outputs []Output
	ops     int

	// err is the first Go error a builtin returned. The interpreter only
	// keeps its message, so it is attached to the EvalError here.
	err error
}

// fail records err and returns it in the shape builtins return.
func (st *state) fail(err error) (zygo.Sexp, error) {
	if st.err == nil {
		st.err = err
	}
	return zygo.SexpNull, err
}

// registerBuiltins installs the mesh builtins into env. Source must go
// through preprocessSource first so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, st *state) {

	// (vec3 x y z)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return st.fail(fmt.Errorf("vec3: expected 3 arguments, got %d", len(args)))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return st.fail(fmt.Errorf("vec3: %w", err))
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// (box (vec3 0 0 0) (vec3 1 1 1)) or (box :min (vec3 ..) :max (vec3 ..))
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		corners := pa.positional
		if lo, ok := pa.kw["min"]; ok {
			hi, ok := pa.kw["max"]
			if !ok {
				return st.fail(fmt.Errorf("box: :min given without :max"))
			}
			corners = []zygo.Sexp{lo, hi}
		}
		if len(corners) != 2 {
			return st.fail(fmt.Errorf("box: expected two corners, got %d", len(corners)))
		}
		lo, err := toVec3(corners[0])
		if err != nil {
			return st.fail(fmt.Errorf("box: min: %w", err))
		}
		hi, err := toVec3(corners[1])
		if err != nil {
			return st.fail(fmt.Errorf("box: max: %w", err))
		}
		if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
			return st.fail(fmt.Errorf("box: max %v must exceed min %v on every axis", hi, lo))
		}
		return &sexpMesh{m: mesh.Box(lo, hi)}, nil
	})

	// (translate m (vec3 dx dy dz)) returns a moved copy.
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return st.fail(fmt.Errorf("translate: expected mesh and offset, got %d arguments", len(args)))
		}
		m, err := toMesh(args[0])
		if err != nil {
			return st.fail(fmt.Errorf("translate: %w", err))
		}
		d, err := toVec3(args[1])
		if err != nil {
			return st.fail(fmt.Errorf("translate: %w", err))
		}
		if m == nil {
			return zygo.SexpNull, nil
		}
		moved := m.Clone()
		moved.Translate(d)
		return &sexpMesh{m: moved}, nil
	})

	// (csg a b :union) runs a boolean operation. No geometry yields ().
	env.AddFunction("csg", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return st.fail(fmt.Errorf("csg: expected a, b and an operation, got %d arguments", len(args)))
		}
		a, err := toMesh(args[0])
		if err != nil {
			return st.fail(fmt.Errorf("csg: a: %w", err))
		}
		b, err := toMesh(args[1])
		if err != nil {
			return st.fail(fmt.Errorf("csg: b: %w", err))
		}
		op, err := toOperation(args[2])
		if err != nil {
			return st.fail(fmt.Errorf("csg: %w", err))
		}

		st.ops++
		out, err := st.csg.Perform(a, b, op)
		if err != nil {
			return st.fail(fmt.Errorf("csg %s: %w", op, err))
		}
		if out == nil {
			return zygo.SexpNull, nil
		}
		return &sexpMesh{m: out}, nil
	})

	counter := func(count func(*mesh.Mesh) int) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return st.fail(fmt.Errorf("%s: expected 1 argument, got %d", name, len(args)))
			}
			m, err := toMesh(args[0])
			if err != nil {
				return st.fail(fmt.Errorf("%s: %w", name, err))
			}
			if m == nil {
				return &zygo.SexpInt{Val: 0}, nil
			}
			return &zygo.SexpInt{Val: int64(count(m))}, nil
		}
	}

	// (vertex-count m), (face-count m)
	env.AddFunction("vertex_count", counter((*mesh.Mesh).VertexCount))
	env.AddFunction("face_count", counter((*mesh.Mesh).FaceCount))

	// (emit "name" m) records m as a named output and returns it.
	env.AddFunction("emit", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return st.fail(fmt.Errorf("emit: expected name and mesh, got %d arguments", len(args)))
		}
		label, err := toString(args[0])
		if err != nil {
			return st.fail(fmt.Errorf("emit: name: %w", err))
		}
		m, err := toMesh(args[1])
		if err != nil {
			return st.fail(fmt.Errorf("emit %q: %w", label, err))
		}
		if m == nil {
			return st.fail(fmt.Errorf("emit %q: no geometry", label))
		}
		st.outputs = append(st.outputs, Output{Name: label, Mesh: m})
		return args[1], nil
	})
}
