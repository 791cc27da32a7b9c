package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
)

var (
	// ErrCancelled is returned when the user gives no answer to a prompt.
	ErrCancelled = errors.New("cancelled")
	// ErrNoSuchMesh is returned when a selected name is not in the document.
	ErrNoSuchMesh = errors.New("no such mesh")
)

// Command is the interactive boolean command. It prompts for two meshes of
// a document and an operation, runs the operation and adds the result to
// the document.
type Command struct {
	doc    *Document
	csg    Performer
	in     *bufio.Scanner
	out    io.Writer
	logger *log.Logger
}

// NewCommand creates a command reading answers from in and writing
// prompts and reports to out.
func NewCommand(doc *Document, p Performer, in io.Reader, out io.Writer) *Command {
	return &Command{
		doc:    doc,
		csg:    p,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logging.Logger(),
	}
}

// Run executes the command once. It returns the document name of the new
// mesh, or "" when the operation produced no geometry.
func (c *Command) Run() (string, error) {
	a, err := c.selectMesh("Select first mesh")
	if err != nil {
		return "", err
	}
	b, err := c.selectMesh("Select second mesh")
	if err != nil {
		return "", err
	}

	answer, err := c.ask(kernel.Usage())
	if err != nil {
		return "", err
	}
	op, err := kernel.ParseOperation(answer)
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input value for boolean operation.")
		return "", err
	}
	fmt.Fprintf(c.out, "Operation %s selected.\n", op)

	result, err := c.csg.Perform(a, b, op)
	if err != nil {
		fmt.Fprintf(c.out, "Boolean operation failed: %v\n", err)
		return "", err
	}
	if result == nil {
		fmt.Fprintln(c.out, "Boolean operation produced no geometry.")
		return "", nil
	}

	name := c.doc.Add("", result)
	fmt.Fprintf(c.out, "Performed boolean operation. New mesh %s has %d vertices and %d faces.\n",
		name, result.VertexCount(), result.FaceCount())
	c.logger.Debug("command", "op", op.String(), "result", name)
	return name, nil
}

func (c *Command) selectMesh(prompt string) (*mesh.Mesh, error) {
	name, err := c.ask(fmt.Sprintf("%s [%s]", prompt, strings.Join(c.doc.Names(), ", ")))
	if err != nil {
		return nil, err
	}
	m, ok := c.doc.Get(name)
	if !ok {
		fmt.Fprintf(c.out, "No mesh named %q.\n", name)
		return nil, fmt.Errorf("%w: %q", ErrNoSuchMesh, name)
	}
	fmt.Fprintf(c.out, "Got mesh %s with %d vertices and %d faces.\n", name, m.VertexCount(), m.FaceCount())
	return m, nil
}

// ask writes prompt and returns the next non-empty answer line.
func (c *Command) ask(prompt string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", prompt)
	for c.in.Scan() {
		if line := strings.TrimSpace(c.in.Text()); line != "" {
			return line, nil
		}
		fmt.Fprintf(c.out, "%s: ", prompt)
	}
	if err := c.in.Err(); err != nil {
		return "", err
	}
	return "", ErrCancelled
}
