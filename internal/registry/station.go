package registry

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalidStationName is returned when a file name does not encode a station.
var ErrInvalidStationName = errors.New("invalid station file name")

const stationExt = ".h5"

// Station identifies a single station file of a database.
type Station struct {
	Network string
	Station string
	// Suffix is whatever sits between the station code and the extension.
	Suffix string
	Path   string
}

// NetSta returns the NETWORK.STATION identifier.
func (s Station) NetSta() string {
	return s.Network + "." + s.Station
}

// ParseStationFile parses a path whose base name is <network>.<station>[.<suffix>].h5.
// Only the name is inspected; the file is never opened.
func ParseStationFile(path string) (Station, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, stationExt) {
		return Station{}, ErrInvalidStationName
	}

	parts := strings.Split(strings.TrimSuffix(base, stationExt), ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Station{}, ErrInvalidStationName
	}

	return Station{
		Network: parts[0],
		Station: parts[1],
		Suffix:  strings.Join(parts[2:], "."),
		Path:    path,
	}, nil
}
