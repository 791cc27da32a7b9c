package script

import (
	"errors"
	"testing"

	"github.com/chazu/meshbool/pkg/boundary"
	"github.com/chazu/meshbool/pkg/csg"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/kernel/kerneltest"
	"github.com/chazu/meshbool/pkg/logging"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(csg a b :union)`,
			expect: `(csg a b "__kw_union")`,
		},
		{
			name:   "multiple keywords",
			input:  `(box :min lo :max hi)`,
			expect: `(box "__kw_min" lo "__kw_max" hi)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "backtick string preserved",
			input:  "`raw :kw`",
			expect: "`raw :kw`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(vertex-count m)`,
			expect: `(vertex_count m)`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `(csg a b :a-minus-b)`,
			expect: `(csg a b "__kw_a-minus-b")`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative number preserved",
			input:  `(vec3 -1 0 0)`,
			expect: `(vec3 -1 0 0)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  "; simple comment\n(+ 1 2)",
			expect: "// simple comment\n(+ 1 2)",
		},
		{
			name:   "unterminated string",
			input:  `"open :kw`,
			expect: `"open :kw`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q)\n got  %q\n want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestBuiltinBoxAndCounts(t *testing.T) {
	ev := newEvaluator(t, kerneltest.New())

	res, evalErrs, err := ev.Evaluate(`
		(def a (box (vec3 0 0 0) (vec3 1 2 3)))
		(def b (box :min (vec3 1 1 1) :max (vec3 2 2 2)))
		(emit "a" a)
		(emit "b" b)
	`)
	require.NoError(t, err)
	require.Empty(t, evalErrs)
	require.Len(t, res.Outputs, 2)

	min, max := res.Mesh("a").BoundingBox()
	assert.Equal(t, r3.Vec{}, min)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, max)
	assert.Equal(t, "b", res.Outputs[1].Name)
	assert.Equal(t, 8, res.Mesh("b").VertexCount())
	assert.Equal(t, 6, res.Mesh("b").FaceCount())
}

func TestBuiltinCounts(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{`(vertex-count (box (vec3 0 0 0) (vec3 1 1 1)))`, 8},
		{`(face-count (box (vec3 0 0 0) (vec3 1 1 1)))`, 6},
		{`(vertex-count (csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 3 3 3) (vec3 4 4 4)) :intersection))`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			env := zygo.NewZlispSandbox()
			defer env.Stop()
			inv := boundary.New(kerneltest.New(), boundary.WithLogger(logging.Discard()))
			registerBuiltins(env, &state{csg: csg.New(inv, csg.WithLogger(logging.Discard()))})

			require.NoError(t, env.LoadString(preprocessSource(tt.src)))
			got, err := env.Run()
			require.NoError(t, err)
			n, ok := got.(*zygo.SexpInt)
			require.True(t, ok, "got %T", got)
			assert.Equal(t, tt.want, n.Val)
		})
	}
}

func TestBuiltinTranslateCopies(t *testing.T) {
	ev := newEvaluator(t, kerneltest.New())

	res, evalErrs, err := ev.Evaluate(`
		(def a (box (vec3 0 0 0) (vec3 1 1 1)))
		(emit "moved" (translate a (vec3 2 0 -1)))
		(emit "orig" a)
	`)
	require.NoError(t, err)
	require.Empty(t, evalErrs)

	min, _ := res.Mesh("moved").BoundingBox()
	assert.Equal(t, r3.Vec{X: 2, Z: -1}, min)
	min, _ = res.Mesh("orig").BoundingBox()
	assert.Equal(t, r3.Vec{}, min)
}

func TestBuiltinCSG(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		wantMax r3.Vec
	}{
		{"keyword", ":union", r3.Vec{X: 1.5, Y: 1, Z: 1}},
		{"string", `"intersection"`, r3.Vec{X: 1, Y: 1, Z: 1}},
		{"ordinal", "2", r3.Vec{X: 1, Y: 1, Z: 1}},
		{"hyphenated keyword", ":b-minus-a", r3.Vec{X: 1.5, Y: 1, Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newEvaluator(t, kerneltest.New())
			res, evalErrs, err := ev.Evaluate(`
				(def a (box (vec3 0 0 0) (vec3 1 1 1)))
				(def b (box (vec3 0.5 0 0) (vec3 1.5 1 1)))
				(csg a b ` + tt.op + `)
			`)
			require.NoError(t, err)
			require.Empty(t, evalErrs)

			m := res.Mesh("result")
			require.NotNil(t, m, "last expression should be reported as result")
			_, max := m.BoundingBox()
			assert.Equal(t, tt.wantMax, max)
		})
	}
}

func TestBuiltinCSGNoGeometry(t *testing.T) {
	ev := newEvaluator(t, kerneltest.New())

	res, evalErrs, err := ev.Evaluate(`
		(def gone (csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 5 5 5) (vec3 6 6 6)) :intersection))
		gone
	`)
	require.NoError(t, err)
	require.Empty(t, evalErrs)
	assert.Empty(t, res.Outputs)
}

func TestBuiltinCSGInvalidOperation(t *testing.T) {
	e := kerneltest.New()
	ev := newEvaluator(t, e)

	_, evalErrs, err := ev.Evaluate(`(csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 0 0 0) (vec3 1 1 1)) 7)`)
	require.NoError(t, err)
	require.NotEmpty(t, evalErrs)
	assert.ErrorIs(t, evalErrs[0], kernel.ErrInvalidOperation)
	assert.Zero(t, e.Stats().Calls)
}

func TestBuiltinCSGEngineFault(t *testing.T) {
	cause := errors.New("engine exploded")
	e := kerneltest.New()
	e.Err = cause
	ev := newEvaluator(t, e)

	_, evalErrs, err := ev.Evaluate(`(csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 0 0 0) (vec3 1 1 1)) :xor)`)
	require.NoError(t, err)
	require.NotEmpty(t, evalErrs)

	var fault *csg.EngineFault
	require.ErrorAs(t, evalErrs[0], &fault)
	assert.Equal(t, kernel.SymmetricDifference, fault.Op)
	assert.ErrorIs(t, evalErrs[0], cause)
}

func TestBuiltinArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"vec3 arity", `(vec3 1 2)`},
		{"vec3 type", `(vec3 1 "two" 3)`},
		{"box arity", `(box (vec3 0 0 0))`},
		{"box min without max", `(box :min (vec3 0 0 0))`},
		{"box inverted", `(box (vec3 1 1 1) (vec3 0 0 0))`},
		{"box flat", `(box (vec3 0 0 0) (vec3 1 1 0))`},
		{"translate type", `(translate 3 (vec3 1 1 1))`},
		{"csg arity", `(csg (box (vec3 0 0 0) (vec3 1 1 1)))`},
		{"csg operand type", `(csg 1 2 :union)`},
		{"csg unknown op", `(csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 0 0 0) (vec3 1 1 1)) :frobnicate)`},
		{"emit nothing", `(emit "x" (csg (box (vec3 0 0 0) (vec3 1 1 1)) (box (vec3 3 3 3) (vec3 4 4 4)) :intersection))`},
		{"emit name type", `(emit 1 (box (vec3 0 0 0) (vec3 1 1 1)))`},
		{"count arity", `(vertex-count)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newEvaluator(t, kerneltest.New())
			res, evalErrs, err := ev.Evaluate(tt.src)
			require.NoError(t, err)
			assert.Nil(t, res)
			require.NotEmpty(t, evalErrs)
			assert.Error(t, evalErrs[0].Err, "builtin error should be attached")
		})
	}
}

func TestParseArgs(t *testing.T) {
	kw := func(name string) zygo.Sexp { return &zygo.SexpStr{S: kwPrefix + name} }
	args := []zygo.Sexp{
		kw("min"), &zygo.SexpInt{Val: 1},
		&zygo.SexpInt{Val: 2},
		kw("union"),
	}
	pa := parseArgs(args)
	assert.Len(t, pa.kw, 1)
	assert.Contains(t, pa.kw, "min")
	require.Len(t, pa.positional, 2)
	name, ok := isKW(pa.positional[1])
	assert.True(t, ok)
	assert.Equal(t, "union", name)
}
