package host

import (
	"fmt"

	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/mesh"
)

// Level is the severity of a runtime message.
type Level int

const (
	Warning Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "Error"
	}
	return "Warning"
}

// Message is a runtime message attached to a component after Solve.
type Message struct {
	Level Level
	Text  string
}

// Runtime message texts.
const (
	MsgInvalidA         = "MeshA has invalid input."
	MsgInvalidB         = "MeshB has invalid input."
	MsgInvalidOperation = "Invalid operation type. Refer to input description for available types."
	MsgNoGeometry       = "Boolean operation produced no geometry."
)

// Component is a node with inputs MeshA, MeshB and Operation and a single
// Result output. Failures never propagate out of Solve; they are recorded
// as runtime messages the way a node editor displays them.
type Component struct {
	MeshA     *mesh.Mesh
	MeshB     *mesh.Mesh
	Operation int

	Result *mesh.Mesh

	csg      Performer
	messages []Message
}

// NewComponent creates a component with the default operation (Union).
func NewComponent(p Performer) *Component {
	return &Component{csg: p}
}

// OperationDescription is the input description of the Operation input.
func OperationDescription() string {
	return fmt.Sprintf("Operation to perform (%s)", kernel.Usage())
}

// Solve recomputes Result from the inputs. It reports whether Result holds
// geometry.
func (c *Component) Solve() bool {
	c.Result = nil
	c.messages = nil

	if c.MeshA == nil {
		c.addMessage(Error, MsgInvalidA)
		return false
	}
	if c.MeshB == nil {
		c.addMessage(Error, MsgInvalidB)
		return false
	}
	op := kernel.Operation(c.Operation)
	if !op.Valid() {
		c.addMessage(Error, MsgInvalidOperation)
		return false
	}

	result, err := c.csg.Perform(c.MeshA, c.MeshB, op)
	if err != nil {
		c.addMessage(Error, fmt.Sprintf("Boolean operation failed: %v", err))
		return false
	}
	if result == nil {
		c.addMessage(Warning, MsgNoGeometry)
		return false
	}
	c.Result = result
	return true
}

// Messages returns the runtime messages of the last Solve.
func (c *Component) Messages() []Message {
	return c.messages
}

func (c *Component) addMessage(level Level, text string) {
	c.messages = append(c.messages, Message{Level: level, Text: text})
}
