// Package registry maps database aliases to Green's function database
// directories and discovers the station files stored under them.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Predefined errors for registry lookups.
var (
	// ErrDatabaseNotFound is returned when an alias is not registered.
	ErrDatabaseNotFound = errors.New("database name not found")

	// ErrNoStationFiles is returned when a database directory holds no station files.
	ErrNoStationFiles = errors.New("no station files found")

	// ErrInvalidPath is returned when a registered path is not a readable directory.
	ErrInvalidPath = errors.New("database path is not a readable directory")
)

// stationGlob matches <db>/<network>/<station>/<file>.h5.
var stationGlob = filepath.Join("*", "*", "*.h5")

// Registry is an immutable alias to directory mapping.
// It is safe for concurrent use.
type Registry struct {
	paths map[string]string
}

// New creates a Registry from an alias to directory map.
// Every path is made absolute and must be a directory the process can read.
func New(databases map[string]string) (*Registry, error) {
	paths := make(map[string]string, len(databases))
	for alias, dir := range databases {
		if alias == "" {
			return nil, fmt.Errorf("%w: empty alias", ErrInvalidPath)
		}
		abs, err := checkDir(dir)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", alias, err)
		}
		paths[alias] = abs
	}
	return &Registry{paths: paths}, nil
}

func checkDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	_ = f.Close()
	return abs, nil
}

// Resolve returns the directory registered for alias.
func (r *Registry) Resolve(alias string) (string, error) {
	dir, ok := r.paths[alias]
	if !ok {
		return "", ErrDatabaseNotFound
	}
	return dir, nil
}

// Aliases returns the registered aliases in sorted order.
func (r *Registry) Aliases() []string {
	aliases := make([]string, 0, len(r.paths))
	for alias := range r.paths {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Len returns the number of registered databases.
func (r *Registry) Len() int {
	return len(r.paths)
}

// StationFiles returns every station file of the database in discovery order.
func (r *Registry) StationFiles(alias string) ([]string, error) {
	dir, err := r.Resolve(alias)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(dir, stationGlob))
	if err != nil {
		return nil, fmt.Errorf("glob station files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoStationFiles
	}
	return files, nil
}

// Stations returns the unique stations of the database in discovery order.
// Files whose names do not follow the station naming scheme are skipped.
func (r *Registry) Stations(alias string) ([]Station, error) {
	files, err := r.StationFiles(alias)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	stations := make([]Station, 0, len(files))
	for _, file := range files {
		st, err := ParseStationFile(file)
		if err != nil {
			continue
		}
		key := st.NetSta()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		stations = append(stations, st)
	}
	if len(stations) == 0 {
		return nil, ErrNoStationFiles
	}
	return stations, nil
}
