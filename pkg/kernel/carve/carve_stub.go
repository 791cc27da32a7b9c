//go:build !carve

// Package carve binds CarveLibWrapper, the C interface over the Carve CSG
// library. Builds without the carve tag get this fallback, which links no
// native code.
package carve

import (
	"errors"

	"github.com/chazu/meshbool/pkg/kernel"
)

// ErrUnavailable is returned by New in builds without the carve tag, where
// the Carve wrapper library and its shim are not linked in.
var ErrUnavailable = errors.New("carve engine not available: build with -tags=carve")

// New reports ErrUnavailable. Select the sdfx engine or rebuild with
// -tags=carve against libcarvewrapper.
func New() (kernel.Engine, error) {
	return nil, ErrUnavailable
}
