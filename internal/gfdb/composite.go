package gfdb

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gf3d/gf3dserver/internal/gfdb"

// HeaderReader reads the scalar header of a single station file.
type HeaderReader interface {
	ReadScalarHeader(ctx context.Context, path string) (Header, error)
}

// SubsetWriter writes a subset of a station set to outfile.
type SubsetWriter interface {
	WriteSubset(ctx context.Context, stationFiles []string, outfile string, q SubsetQuery) error
}

// Composite is a Library that reads headers and writes subsets through
// separate backends.
type Composite struct {
	headers HeaderReader
	subsets SubsetWriter
	tracer  trace.Tracer
	metrics *callMetrics
}

// NewComposite creates a Composite library.
func NewComposite(headers HeaderReader, subsets SubsetWriter) *Composite {
	return &Composite{
		headers: headers,
		subsets: subsets,
		tracer:  otel.Tracer(tracerName),
		metrics: newCallMetrics(),
	}
}

// Open returns a Manager over stationFiles.
func (c *Composite) Open(stationFiles []string) (Manager, error) {
	if len(stationFiles) == 0 {
		return nil, errors.WithStack(ErrNoStationFiles)
	}
	files := make([]string, len(stationFiles))
	copy(files, stationFiles)
	return &manager{lib: c, files: files}, nil
}

type manager struct {
	lib   *Composite
	files []string

	mu sync.Mutex

	// headerLoaded gates WriteSubset. The subset tool reads the header
	// variables from the station files itself, so the values are not passed on.
	headerLoaded bool
}

func (m *manager) LoadScalarHeader(ctx context.Context) (Header, error) {
	ctx, span := m.lib.tracer.Start(ctx, "gfdb.LoadScalarHeader",
		trace.WithAttributes(attribute.String("gfdb.station_file", m.files[0])))
	defer span.End()

	start := time.Now()
	var h Header
	err := Guard(func() error {
		var err error
		h, err = m.lib.headers.ReadScalarHeader(ctx, m.files[0])
		return err
	})
	m.lib.metrics.record(ctx, "load_scalar_header", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Header{}, err
	}
	return h, nil
}

func (m *manager) LoadHeaderVariables(ctx context.Context) error {
	if _, err := m.LoadScalarHeader(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.headerLoaded = true
	m.mu.Unlock()
	return nil
}

func (m *manager) WriteSubset(ctx context.Context, outfile string, q SubsetQuery) error {
	m.mu.Lock()
	loaded := m.headerLoaded
	m.mu.Unlock()
	if !loaded {
		return errors.WithStack(ErrHeaderNotLoaded)
	}

	ctx, span := m.lib.tracer.Start(ctx, "gfdb.WriteSubset",
		trace.WithAttributes(
			attribute.Int("gfdb.station_files", len(m.files)),
			attribute.Float64("gfdb.latitude", q.Latitude),
			attribute.Float64("gfdb.longitude", q.Longitude),
			attribute.Float64("gfdb.depth", q.Depth),
			attribute.Float64("gfdb.radius", q.Radius),
			attribute.Int("gfdb.ngll", q.NGLL),
			attribute.Bool("gfdb.fortran", q.Fortran),
		))
	defer span.End()

	if q.Duration != nil {
		span.SetAttributes(attribute.Float64("gfdb.duration", *q.Duration))
	}

	start := time.Now()
	err := Guard(func() error {
		return m.lib.subsets.WriteSubset(ctx, m.files, outfile, q)
	})
	m.lib.metrics.record(ctx, "write_subset", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
