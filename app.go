package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/boundary"
	"github.com/chazu/meshbool/pkg/config"
	"github.com/chazu/meshbool/pkg/csg"
	"github.com/chazu/meshbool/pkg/flatmesh"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/kernel/carve"
	"github.com/chazu/meshbool/pkg/kernel/isolate"
	"github.com/chazu/meshbool/pkg/kernel/sdfx"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
	"github.com/chazu/meshbool/pkg/script"
)

// App wires the configured engine, dispatcher and script evaluator.
type App struct {
	cfg        *config.Config
	engine     kernel.Engine
	dispatcher *csg.Dispatcher
	evaluator  *script.Evaluator
	logger     *log.Logger
}

// MeshData is the JSON form of a result mesh, in the flat layout.
type MeshData struct {
	Name        string    `json:"name"`
	VertexCount int       `json:"vertexCount"`
	FaceCount   int       `json:"faceCount"`
	Vertices    []float64 `json:"vertices"`
	FaceIndices []int32   `json:"faceIndices"`
	FaceSizes   []int32   `json:"faceSizes"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a script.
type EvalResult struct {
	Meshes []MeshData      `json:"meshes"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp builds the engine stack described by cfg.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Logger()

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Isolate {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker binary: %w", err)
		}
		engine = isolate.New(exe, workerArgs(cfg),
			isolate.WithName("isolate:"+cfg.Engine),
			isolate.WithLogger(logger),
		)
	}

	inv := boundary.New(engine,
		boundary.WithLogger(logger),
		boundary.WithCopyWorkers(cfg.Copy.Workers),
		boundary.WithParallelThreshold(cfg.Copy.Threshold),
	)
	d := csg.New(inv,
		csg.WithLogger(logger),
		csg.WithWeldAngle(cfg.Weld.Angle),
		csg.WithWeldDistance(cfg.Weld.Distance),
	)

	return &App{
		cfg:        cfg,
		engine:     engine,
		dispatcher: d,
		evaluator:  script.NewEvaluator(d, script.WithLogger(logger)),
		logger:     logger,
	}, nil
}

// newEngine creates the in-process engine named by cfg.Engine.
func newEngine(cfg *config.Config) (kernel.Engine, error) {
	switch cfg.Engine {
	case config.EngineSdfx:
		return sdfx.New(sdfx.WithResolution(cfg.Sdfx.Resolution)), nil
	case config.EngineCarve:
		return carve.New()
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

// workerArgs are the arguments the isolated worker process is started
// with. They select the same in-process engine in the child.
func workerArgs(cfg *config.Config) []string {
	return []string{
		"engine-worker",
		"--engine", cfg.Engine,
		"--resolution", strconv.Itoa(cfg.Sdfx.Resolution),
		"--log-level", cfg.LogLevel,
	}
}

// EngineName reports the engine behind the dispatcher.
func (a *App) EngineName() string {
	return a.engine.Name()
}

// Perform runs one boolean operation. It implements host.Performer.
func (a *App) Perform(ma, mb *mesh.Mesh, op kernel.Operation) (*mesh.Mesh, error) {
	return a.dispatcher.Perform(ma, mb, op)
}

// Evaluate runs script source and converts its outputs for JSON output.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes: []MeshData{},
		Errors: []EvalErrorData{},
	}

	res, evalErrs, err := a.evaluator.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.logger.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	for _, o := range res.Outputs {
		md, err := newMeshData(o.Name, o.Mesh)
		if err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
			continue
		}
		result.Meshes = append(result.Meshes, md)
	}
	return result
}

func newMeshData(name string, m *mesh.Mesh) (MeshData, error) {
	f, err := flatmesh.Encode(m)
	if err != nil {
		return MeshData{}, fmt.Errorf("output %q: %w", name, err)
	}
	return MeshData{
		Name:        name,
		VertexCount: m.VertexCount(),
		FaceCount:   m.FaceCount(),
		Vertices:    f.Vertices,
		FaceIndices: f.FaceIndices,
		FaceSizes:   f.FaceSizes,
	}, nil
}
