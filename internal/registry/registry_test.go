package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gf3d/gf3dserver/internal/registry"
)

// writeStations creates <root>/<net>/<sta>/<name> for each name and returns root.
func writeStations(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		st, err := registry.ParseStationFile(name)
		dir := filepath.Join(root, "misc", "misc")
		if err == nil {
			dir = filepath.Join(root, st.Network, st.Station)
		}
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	return root
}

func TestNew_RejectsMissingDirectory(t *testing.T) {
	_, err := registry.New(map[string]string{
		"gone": filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalidPath)
}

func TestNew_RejectsRegularFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.h5")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := registry.New(map[string]string{"file": file})
	assert.ErrorIs(t, err, registry.ErrInvalidPath)
}

func TestNew_RejectsEmptyPath(t *testing.T) {
	_, err := registry.New(map[string]string{"empty": ""})
	assert.ErrorIs(t, err, registry.ErrInvalidPath)
}

func TestNew_CopiesInput(t *testing.T) {
	dir := t.TempDir()
	input := map[string]string{"db": dir}

	reg, err := registry.New(input)
	require.NoError(t, err)

	input["other"] = dir
	delete(input, "db")

	assert.Equal(t, []string{"db"}, reg.Aliases())
	assert.Equal(t, 1, reg.Len())
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.New(map[string]string{"example-db": dir})
	require.NoError(t, err)

	got, err := reg.Resolve("example-db")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = reg.Resolve("unknown")
	assert.ErrorIs(t, err, registry.ErrDatabaseNotFound)
}

func TestAliases_Sorted(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.New(map[string]string{"zeta": dir, "alpha": dir, "mid": dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Aliases())
}

func TestStationFiles(t *testing.T) {
	root := writeStations(t, "NET1.STA1.suffix.h5", "NET2.STA2.suffix.h5")
	reg, err := registry.New(map[string]string{"db": root})
	require.NoError(t, err)

	files, err := reg.StationFiles("db")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, "NET1.STA1.suffix.h5", filepath.Base(files[0]))
	assert.Equal(t, "NET2.STA2.suffix.h5", filepath.Base(files[1]))
}

func TestStationFiles_IgnoresOtherDepths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "TOP.LEVEL.h5"), []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "NET"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "NET", "ONE.DEEP.h5"), []byte("x"), 0o600))

	reg, err := registry.New(map[string]string{"db": root})
	require.NoError(t, err)

	_, err = reg.StationFiles("db")
	assert.ErrorIs(t, err, registry.ErrNoStationFiles)
}

func TestStationFiles_UnknownAlias(t *testing.T) {
	reg, err := registry.New(map[string]string{})
	require.NoError(t, err)

	_, err = reg.StationFiles("nope")
	assert.ErrorIs(t, err, registry.ErrDatabaseNotFound)
}

func TestStations_Deduplicates(t *testing.T) {
	root := writeStations(t,
		"II.BFO.a.h5",
		"II.BFO.b.h5",
		"IU.ANMO.a.h5",
	)
	reg, err := registry.New(map[string]string{"db": root})
	require.NoError(t, err)

	stations, err := reg.Stations("db")
	require.NoError(t, err)

	netsta := make([]string, 0, len(stations))
	for _, st := range stations {
		netsta = append(netsta, st.NetSta())
	}
	assert.Equal(t, []string{"II.BFO", "IU.ANMO"}, netsta)
}

func TestStations_SkipsMalformedNames(t *testing.T) {
	root := writeStations(t, "garbage.h5", "NET.STA.h5")
	reg, err := registry.New(map[string]string{"db": root})
	require.NoError(t, err)

	stations, err := reg.Stations("db")
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "NET.STA", stations[0].NetSta())
}

func TestStations_OnlyMalformedNames(t *testing.T) {
	root := writeStations(t, "garbage.h5")
	reg, err := registry.New(map[string]string{"db": root})
	require.NoError(t, err)

	_, err = reg.Stations("db")
	assert.ErrorIs(t, err, registry.ErrNoStationFiles)
}

func TestParseStationFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    registry.Station
		wantErr bool
	}{
		{
			name: "with suffix",
			path: "/db/II/BFO/II.BFO.subset.h5",
			want: registry.Station{Network: "II", Station: "BFO", Suffix: "subset", Path: "/db/II/BFO/II.BFO.subset.h5"},
		},
		{
			name: "without suffix",
			path: "IU.ANMO.h5",
			want: registry.Station{Network: "IU", Station: "ANMO", Path: "IU.ANMO.h5"},
		},
		{
			name: "dotted suffix",
			path: "IU.ANMO.a.b.h5",
			want: registry.Station{Network: "IU", Station: "ANMO", Suffix: "a.b", Path: "IU.ANMO.a.b.h5"},
		},
		{name: "single component", path: "ANMO.h5", wantErr: true},
		{name: "wrong extension", path: "IU.ANMO.sac", wantErr: true},
		{name: "empty network", path: ".ANMO.x.h5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.ParseStationFile(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, registry.ErrInvalidStationName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
