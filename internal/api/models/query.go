package models

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/validation"
)

// Query parameter names as sent by clients.
const (
	ParamDB        = "db"
	ParamLatitude  = "latitude"
	ParamLongitude = "longitude"
	ParamDepth     = "depth"
	ParamRadius    = "radius"
	ParamNGLL      = "NGLL"
	ParamDuration  = "duration"
	ParamFortran   = "fortran"
	ParamNetSta    = "netsta"
)

// RequiredSubsetParams lists the parameters /get-subset needs, in the order
// they are checked.
var RequiredSubsetParams = []string{
	ParamDB,
	ParamLatitude,
	ParamLongitude,
	ParamDepth,
	ParamRadius,
	ParamNGLL,
}

// ParamError describes a query parameter a request cannot be served with.
type ParamError struct {
	Name    string
	Value   string
	Missing bool
	Reason  string
}

func (e *ParamError) Error() string {
	if e.Missing {
		return "missing parameter " + e.Name
	}
	return fmt.Sprintf("invalid %s=%q: %s", e.Name, e.Value, e.Reason)
}

func missing(name string) *ParamError {
	return &ParamError{Name: name, Missing: true}
}

func invalid(name, value, reason string) *ParamError {
	return &ParamError{Name: name, Value: value, Reason: reason}
}

// DatabaseQuery is the query of routes that only name a database.
type DatabaseQuery struct {
	DB string `query:"db"`
}

// ParseDatabaseQuery reads the db parameter. An empty value is present, not
// missing; it fails the registry lookup instead.
func ParseDatabaseQuery(q url.Values) (DatabaseQuery, *ParamError) {
	if !q.Has(ParamDB) {
		return DatabaseQuery{}, missing(ParamDB)
	}
	return DatabaseQuery{DB: q.Get(ParamDB)}, nil
}

// SubsetRequest is a parsed and validated /get-subset query.
type SubsetRequest struct {
	DB        string   `query:"db"`
	Latitude  float64  `query:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `query:"longitude" validate:"gte=-180,lte=180"`
	Depth     float64  `query:"depth" validate:"gte=0"`
	Radius    float64  `query:"radius" validate:"gt=0"`
	NGLL      int      `query:"NGLL" validate:"min=1"`
	Duration  *float64 `query:"duration" validate:"omitempty,gt=0"`
	Fortran   bool     `query:"fortran"`

	// NetSta is accepted and logged. Station selection is not forwarded to
	// the library.
	NetSta string `query:"netsta"`
}

// ParseSubsetRequest checks that every required parameter is present, then
// coerces and validates the values. The first problem found is returned.
func ParseSubsetRequest(q url.Values) (SubsetRequest, *ParamError) {
	for _, name := range RequiredSubsetParams {
		if !q.Has(name) {
			return SubsetRequest{}, missing(name)
		}
	}

	req := SubsetRequest{
		DB:     q.Get(ParamDB),
		NetSta: q.Get(ParamNetSta),
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{ParamLatitude, &req.Latitude},
		{ParamLongitude, &req.Longitude},
		{ParamDepth, &req.Depth},
		{ParamRadius, &req.Radius},
	}
	for _, f := range floats {
		v, perr := parseFloat(f.name, q.Get(f.name))
		if perr != nil {
			return SubsetRequest{}, perr
		}
		*f.dst = v
	}

	ngll := q.Get(ParamNGLL)
	n, err := strconv.Atoi(strings.TrimSpace(ngll))
	if err != nil {
		return SubsetRequest{}, invalid(ParamNGLL, ngll, "must be an integer")
	}
	req.NGLL = n

	if q.Has(ParamDuration) {
		d, perr := parseFloat(ParamDuration, q.Get(ParamDuration))
		if perr != nil {
			return SubsetRequest{}, perr
		}
		req.Duration = &d
	}

	fortran, ok := ParseFortran(q.Get(ParamFortran))
	if !ok {
		return SubsetRequest{}, invalid(ParamFortran, q.Get(ParamFortran), "must be a boolean")
	}
	req.Fortran = fortran

	if verr := validation.ValidateStruct(&req); verr != nil {
		first := verr.First()
		return SubsetRequest{}, invalid(first.Field, q.Get(first.Field), first.Message)
	}

	return req, nil
}

// Query converts the request into the library's subset parameters.
func (r SubsetRequest) Query() gfdb.SubsetQuery {
	return gfdb.SubsetQuery{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Depth:     r.Depth,
		Radius:    r.Radius,
		NGLL:      r.NGLL,
		Fortran:   r.Fortran,
		Duration:  r.Duration,
	}
}

func parseFloat(name, raw string) (float64, *ParamError) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, invalid(name, raw, "must be a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(name, raw, "must be a finite number")
	}
	return v, nil
}

// ParseFortran interprets the fortran flag. An empty value is false. The
// second result is false for values that are not a recognized boolean.
func ParseFortran(raw string) (value, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return false, true
	case "yes", "on":
		return true, true
	case "no", "off":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}
