package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/meshbool/pkg/config"
	"github.com/chazu/meshbool/pkg/host"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/kernel/isolate"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	engine     string
	logLevel   string
	isolate    bool
	resolution int
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "meshbool",
		Short: "meshbool - boolean operations on polygon meshes",
		Long: `meshbool combines two closed polygon meshes with a boolean operation
(union, intersection, difference, symmetric difference) through a pluggable
geometry engine.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.FileName, "path to the YAML config file")
	pf.StringVar(&g.engine, "engine", "", "geometry engine (sdfx or carve)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&g.isolate, "isolate", false, "run the engine in a worker process")
	pf.IntVar(&g.resolution, "resolution", 0, "sdfx marching cubes resolution")

	root.AddCommand(
		newRunCmd(g),
		newPromptCmd(g),
		newEvalCmd(g),
		newWorkerCmd(g),
	)
	return root
}

// loadConfig reads the config file and applies the flags the user set.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = g.engine
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("isolate") {
		cfg.Isolate = g.isolate
	}
	if flags.Changed("resolution") {
		cfg.Sdfx.Resolution = g.resolution
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return cfg, nil
}

func (g *globalFlags) newApp(cmd *cobra.Command) (*App, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return NewApp(cfg)
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		opName string
		boxA   string
		boxB   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Combine two boxes and print the result",
		Long: `Builds two axis-aligned boxes from --a and --b ("x0,y0,z0,x1,y1,z1"),
combines them with --op and prints the size of the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := kernel.ParseOperation(opName)
			if err != nil {
				return fmt.Errorf("%w (expected %s)", err, kernel.Usage())
			}
			a, err := parseBox(boxA)
			if err != nil {
				return fmt.Errorf("--a: %w", err)
			}
			b, err := parseBox(boxB)
			if err != nil {
				return fmt.Errorf("--b: %w", err)
			}

			app, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			out, err := app.Perform(a, b, op)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), op, out, asJSON)
		},
	}
	cmd.Flags().StringVar(&opName, "op", "union", "operation name or ordinal: "+kernel.Usage())
	cmd.Flags().StringVar(&boxA, "a", "0,0,0,1,1,1", "first box as x0,y0,z0,x1,y1,z1")
	cmd.Flags().StringVar(&boxB, "b", "0.5,0.5,0.5,1.5,1.5,1.5", "second box as x0,y0,z0,x1,y1,z1")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result mesh as JSON")
	return cmd
}

func printResult(w io.Writer, op kernel.Operation, out *mesh.Mesh, asJSON bool) error {
	if asJSON {
		var md *MeshData
		if out != nil {
			data, err := newMeshData(op.String(), out)
			if err != nil {
				return err
			}
			md = &data
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(md)
	}
	if out == nil {
		fmt.Fprintf(w, "%s produced no geometry\n", op)
		return nil
	}
	min, max := out.BoundingBox()
	fmt.Fprintf(w, "%s: %d vertices, %d faces, bounds (%g,%g,%g)-(%g,%g,%g)\n",
		op, out.VertexCount(), out.FaceCount(), min.X, min.Y, min.Z, max.X, max.Y, max.Z)
	return nil
}

// parseBox reads "x0,y0,z0,x1,y1,z1" into a box mesh.
func parseBox(s string) (*mesh.Mesh, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return nil, fmt.Errorf("box %q: want 6 comma-separated numbers, got %d", s, len(parts))
	}
	var v [6]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = f
	}
	lo := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	hi := r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
		return nil, fmt.Errorf("box %q: max corner must exceed min corner on every axis", s)
	}
	return mesh.Box(lo, hi), nil
}

func newPromptCmd(g *globalFlags) *cobra.Command {
	var boxes []string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Pick two meshes and an operation interactively",
		Long: `Loads the boxes given with --box into a document and asks for the two
meshes and the operation on stdin. Each --box is name=x0,y0,z0,x1,y1,z1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := host.NewDocument()
			for _, arg := range boxes {
				name, coords, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("--box %q: want name=x0,y0,z0,x1,y1,z1", arg)
				}
				m, err := parseBox(coords)
				if err != nil {
					return fmt.Errorf("--box %s: %w", name, err)
				}
				doc.Add(name, m)
			}

			app, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			_, err = host.NewCommand(doc, app, cmd.InOrStdin(), cmd.OutOrStdout()).Run()
			if errors.Is(err, host.ErrCancelled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringArrayVar(&boxes, "box", []string{"a=0,0,0,1,1,1", "b=0.5,0.5,0.5,1.5,1.5,1.5"},
		"named box as name=x0,y0,z0,x1,y1,z1 (repeatable)")
	return cmd
}

func newEvalCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Evaluate a mesh boolean script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading script: %w", err)
			}
			app, err := g.newApp(cmd)
			if err != nil {
				return err
			}

			result := app.Evaluate(string(source))
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				for _, m := range result.Meshes {
					fmt.Fprintf(w, "%s: %d vertices, %d faces\n", m.Name, m.VertexCount, m.FaceCount)
				}
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], evalErrorString(e))
				}
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%s: %d error(s)", args[0], len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// evalErrorString formats e like a compiler diagnostic.
func evalErrorString(e EvalErrorData) string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// newWorkerCmd is the child side of the isolate engine: it serves one
// request from stdin on the in-process engine and exits.
func newWorkerCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:    "engine-worker",
		Short:  "Serve one engine request on stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg)
			if err != nil {
				return err
			}
			return isolate.Serve(engine, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
