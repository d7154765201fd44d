// Package gfdb is the boundary to the Green's function database access library.
//
// The gateway never touches the database binary format itself. It opens a
// Manager over a set of station files and asks it for scalar header values or
// for a geographic subset written to a file.
package gfdb

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
)

// ErrHeaderNotLoaded is returned when a subset is requested before the
// header variables of the station set were loaded.
var ErrHeaderNotLoaded = errors.New("header variables not loaded")

// ErrNoStationFiles is returned when a Manager is opened without station files.
var ErrNoStationFiles = errors.New("no station files given")

// Library opens managers over station files.
type Library interface {
	Open(stationFiles []string) (Manager, error)
}

// Manager answers queries against one set of station files.
type Manager interface {
	// LoadScalarHeader returns the scalar header parameters of the first station file.
	LoadScalarHeader(ctx context.Context) (Header, error)

	// LoadHeaderVariables loads the header variables shared by the station set.
	// It must succeed before WriteSubset, which checks that it ran but does
	// not receive the values.
	LoadHeaderVariables(ctx context.Context) error

	// WriteSubset extracts the subset described by q and writes it to outfile.
	WriteSubset(ctx context.Context, outfile string, q SubsetQuery) error
}

// SubsetQuery describes a geographic and depth subset of a database.
type SubsetQuery struct {
	Latitude  float64
	Longitude float64
	// Depth in km.
	Depth float64
	// Radius in km around the epicentre.
	Radius float64
	// NGLL is the number of GLL points per element edge to keep.
	NGLL int
	// Fortran selects Fortran (column major) ordering of the output arrays.
	Fortran bool
	// Duration optionally truncates the seismograms, in seconds.
	Duration *float64
}

// Tracebacker is implemented by errors that carry a traceback produced
// outside the Go process, such as the stderr of an external tool.
type Tracebacker interface {
	Traceback() string
}

// Traced renders err with its message followed by a stack trace.
// An external traceback found in the chain comes first. Errors built with
// github.com/pkg/errors carry the Go trace of their origin; any other error
// gets the trace of the caller.
func Traced(err error) (message, stack string) {
	if err == nil {
		return "", ""
	}
	message = err.Error()

	full := fmt.Sprintf("%+v", err)
	stack = strings.TrimPrefix(strings.TrimPrefix(full, message), "\n")
	if strings.TrimSpace(stack) == "" {
		stack = string(debug.Stack())
	}

	var tb Tracebacker
	if errors.As(err, &tb) {
		if ext := strings.TrimSpace(tb.Traceback()); ext != "" {
			stack = ext + "\n\n" + stack
		}
	}
	return message, stack
}

// Guard runs fn and converts a panic into an error. The error's stack is
// recorded while unwinding, so it includes the panicking frames.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
