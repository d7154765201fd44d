// Package hdf5header reads scalar header parameters from GFDB station files.
package hdf5header

import (
	"context"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/pkg/errors"

	"github.com/gf3d/gf3dserver/internal/gfdb"
)

// Reader reads station file headers with a pure Go HDF5 decoder.
type Reader struct{}

// NewReader creates a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadScalarHeader returns the root attributes and every root variable
// holding a single value, in file order.
func (r *Reader) ReadScalarHeader(ctx context.Context, path string) (gfdb.Header, error) {
	if err := ctx.Err(); err != nil {
		return gfdb.Header{}, err
	}

	group, err := netcdf.Open(path)
	if err != nil {
		return gfdb.Header{}, errors.Wrapf(err, "open station file %s", path)
	}
	defer group.Close()

	var h gfdb.Header
	addAttributes(&h, group.Attributes())

	for _, name := range group.ListVariables() {
		getter, err := group.GetVarGetter(name)
		if err != nil {
			return gfdb.Header{}, errors.Wrapf(err, "read variable %s", name)
		}
		if getter.Len() != 1 || len(getter.Dimensions()) > 1 {
			continue
		}
		val, err := getter.Values()
		if err != nil {
			return gfdb.Header{}, errors.Wrapf(err, "read variable %s", name)
		}
		h.Add(name, scalar(val))
	}
	return h, nil
}

func addAttributes(h *gfdb.Header, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	for _, key := range attrs.Keys() {
		if val, ok := attrs.Get(key); ok {
			h.Add(key, scalar(val))
		}
	}
}

// scalar unwraps single element slices so a value stored with shape (1,)
// prints the same as a true scalar.
func scalar(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Len() == 1 {
		if _, isBytes := v.([]byte); !isBytes {
			return rv.Index(0).Interface()
		}
	}
	return v
}
