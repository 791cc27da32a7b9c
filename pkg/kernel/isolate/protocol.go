package isolate

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/meshbool/pkg/kernel"
)

// Frames are little-endian. A request is
//
//	magic "MBQ1" | op int32 | mesh A | mesh B
//
// and a response is
//
//	magic "MBR1" | status uint8 | payload
//
// where the payload is a mesh for statusMesh, nothing for statusEmpty and
// a length-prefixed message for statusError. A mesh is three uint32
// counts (coordinate values, face indices, faces) followed by the float64
// coordinates and the int32 indices and sizes.

var (
	requestMagic  = [4]byte{'M', 'B', 'Q', '1'}
	responseMagic = [4]byte{'M', 'B', 'R', '1'}
)

const (
	statusMesh  uint8 = 0
	statusEmpty uint8 = 1
	statusError uint8 = 2
)

// maxElements bounds every array length read from a frame.
const maxElements = 1 << 28

// ErrProtocol is returned for frames that cannot be decoded.
var ErrProtocol = errors.New("isolate: protocol error")

var order = binary.LittleEndian

func writeRequest(w io.Writer, a, b kernel.Descriptor, op kernel.Operation) error {
	if err := binary.Write(w, order, requestMagic); err != nil {
		return err
	}
	if err := binary.Write(w, order, int32(op)); err != nil {
		return err
	}
	if err := writeMesh(w, a.Vertices, a.FaceIndices, a.FaceSizes); err != nil {
		return err
	}
	return writeMesh(w, b.Vertices, b.FaceIndices, b.FaceSizes)
}

func readRequest(r io.Reader) (a, b kernel.Descriptor, op kernel.Operation, err error) {
	if err = readMagic(r, requestMagic); err != nil {
		return
	}
	var raw int32
	if err = binary.Read(r, order, &raw); err != nil {
		return
	}
	op = kernel.Operation(raw)
	if a, err = readMesh(r); err != nil {
		return
	}
	b, err = readMesh(r)
	return
}

// writeResult writes the response for one Perform outcome. res may be
// nil; it is not released here.
func writeResult(w io.Writer, res kernel.Result, perr error) error {
	if err := binary.Write(w, order, responseMagic); err != nil {
		return err
	}
	switch {
	case perr != nil:
		msg := []byte(perr.Error())
		if err := binary.Write(w, order, statusError); err != nil {
			return err
		}
		if err := binary.Write(w, order, uint32(len(msg))); err != nil {
			return err
		}
		_, err := w.Write(msg)
		return err
	case res == nil || res.NumVertices() == 0:
		return binary.Write(w, order, statusEmpty)
	default:
		if err := binary.Write(w, order, statusMesh); err != nil {
			return err
		}
		return writeMesh(w, res.Vertices(), res.FaceIndices(), res.FaceSizes())
	}
}

// readResult decodes a response. An engine-side failure is returned as
// the error with a nil result; an empty outcome as a nil result and nil
// error.
func readResult(r io.Reader) (kernel.Result, error) {
	if err := readMagic(r, responseMagic); err != nil {
		return nil, err
	}
	var status uint8
	if err := binary.Read(r, order, &status); err != nil {
		return nil, fmt.Errorf("%w: status: %v", ErrProtocol, err)
	}
	switch status {
	case statusEmpty:
		return nil, nil
	case statusError:
		var n uint32
		if err := binary.Read(r, order, &n); err != nil {
			return nil, fmt.Errorf("%w: message length: %v", ErrProtocol, err)
		}
		if n > maxElements {
			return nil, fmt.Errorf("%w: message of %d bytes", ErrProtocol, n)
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrProtocol, err)
		}
		return nil, errors.New(string(msg))
	case statusMesh:
		d, err := readMesh(r)
		if err != nil {
			return nil, err
		}
		return kernel.NewMemResult(d.Vertices, d.FaceIndices, d.FaceSizes), nil
	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrProtocol, status)
	}
}

func writeMesh(w io.Writer, vertices []float64, faceIndices, faceSizes []int32) error {
	counts := [3]uint32{uint32(len(vertices)), uint32(len(faceIndices)), uint32(len(faceSizes))}
	if err := binary.Write(w, order, counts); err != nil {
		return err
	}
	if err := binary.Write(w, order, vertices); err != nil {
		return err
	}
	if err := binary.Write(w, order, faceIndices); err != nil {
		return err
	}
	return binary.Write(w, order, faceSizes)
}

func readMesh(r io.Reader) (kernel.Descriptor, error) {
	var counts [3]uint32
	if err := binary.Read(r, order, &counts); err != nil {
		return kernel.Descriptor{}, fmt.Errorf("%w: mesh header: %v", ErrProtocol, err)
	}
	for _, c := range counts {
		if c > maxElements {
			return kernel.Descriptor{}, fmt.Errorf("%w: array of %d elements", ErrProtocol, c)
		}
	}
	d := kernel.Descriptor{
		Vertices:    make([]float64, counts[0]),
		FaceIndices: make([]int32, counts[1]),
		FaceSizes:   make([]int32, counts[2]),
	}
	if err := binary.Read(r, order, d.Vertices); err != nil {
		return kernel.Descriptor{}, fmt.Errorf("%w: vertices: %v", ErrProtocol, err)
	}
	if err := binary.Read(r, order, d.FaceIndices); err != nil {
		return kernel.Descriptor{}, fmt.Errorf("%w: face indices: %v", ErrProtocol, err)
	}
	if err := binary.Read(r, order, d.FaceSizes); err != nil {
		return kernel.Descriptor{}, fmt.Errorf("%w: face sizes: %v", ErrProtocol, err)
	}
	return d, nil
}

func readMagic(r io.Reader, want [4]byte) error {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return fmt.Errorf("%w: magic: %v", ErrProtocol, err)
	}
	if got != want {
		return fmt.Errorf("%w: magic %q, want %q", ErrProtocol, got[:], want[:])
	}
	return nil
}

// Serve reads one request from r, runs it on engine and writes the
// response to w. Engine panics are not recovered: a crashing engine takes
// the worker process down and the parent reports the exit.
func Serve(engine kernel.Engine, r io.Reader, w io.Writer) error {
	a, b, op, err := readRequest(bufio.NewReader(r))
	if err != nil {
		return err
	}

	res, perr := engine.Perform(a, b, op)
	if res != nil {
		defer res.Release()
	}

	bw := bufio.NewWriter(w)
	if err := writeResult(bw, res, perr); err != nil {
		return err
	}
	return bw.Flush()
}
