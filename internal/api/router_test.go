package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	netcdfapi "github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gf3d/gf3dserver/internal/api"
	"github.com/gf3d/gf3dserver/internal/api/handler"
	"github.com/gf3d/gf3dserver/internal/api/middleware"
	"github.com/gf3d/gf3dserver/internal/api/models"
	"github.com/gf3d/gf3dserver/internal/config"
	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/gfdb/bridge"
	"github.com/gf3d/gf3dserver/internal/gfdb/hdf5header"
	"github.com/gf3d/gf3dserver/internal/provider/resilience"
	"github.com/gf3d/gf3dserver/internal/registry"
)

// fakeTool writes its argument list into the --output file, or fails with a
// Python style traceback when the radius is 999.
const fakeTool = `
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "--output" ]; then out="$a"; fi
	if [ "$prev" = "--radius" ] && [ "$a" = "999" ]; then
		echo "Traceback (most recent call last):" >&2
		echo "ValueError: no elements within radius" >&2
		exit 1
	fi
	prev="$a"
done
echo "$@" > "$out"
`

func writeStationFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	w, err := netcdf.OpenWriter(path, netcdf.KindHDF5)
	require.NoError(t, err)
	require.NoError(t, w.AddVar("NGLLX", netcdfapi.Variable{Values: int32(5)}))
	require.NoError(t, w.AddVar("DT", netcdfapi.Variable{Values: float64(0.1)}))
	require.NoError(t, w.Close())
}

type testServer struct {
	router   http.Handler
	scratch  string
	breakers *resilience.Registry
}

func newTestServer(t *testing.T, rl config.RateLimitConfig) *testServer {
	t.Helper()
	root := t.TempDir()
	writeStationFile(t, filepath.Join(root, "single", "II", "BFO", "II.BFO.cmt.h5"))
	writeStationFile(t, filepath.Join(root, "single", "IU", "ANMO", "IU.ANMO.cmt.h5"))

	reg, err := registry.New(map[string]string{"single": filepath.Join(root, "single")})
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	sub := bridge.New(bridge.Config{
		Command: []string{"sh", "-c", fakeTool, "gf3d-subset"},
		Logger:  logger,
	})
	breakers := resilience.NewRegistry()
	breakers.Register(sub.Breaker())

	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	scratch := t.TempDir()
	router := api.NewRouter(api.RouterConfig{
		Version:      "test",
		BuildTime:    "2026-01-01T00:00:00Z",
		Logger:       logger,
		Metrics:      metrics,
		Catalog:      reg,
		Library:      gfdb.NewComposite(hdf5header.NewReader(), sub),
		Breakers:     breakers,
		DocsURL:      config.DefaultDocsURL,
		ScratchDir:   scratch,
		ExposeErrors: true,
		RateLimit:    rl,
	})
	return &testServer{router: router, scratch: scratch, breakers: breakers}
}

func (s *testServer) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func unlimited() config.RateLimitConfig {
	return config.RateLimitConfig{Disabled: true}
}

func TestRouter_DocsRedirect(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, config.DefaultDocsURL, w.Header().Get("Location"))
}

func TestRouter_StationAvailability(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/get-station-availability?db=single")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "II.BFO")
	assert.Contains(t, w.Body.String(), "IU.ANMO")
}

func TestRouter_DatabaseInfo(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/get-db-info?db=single")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NGLLX: 5")
	assert.Contains(t, w.Body.String(), "DT: 0.1")
}

func TestRouter_UnknownDatabase(t *testing.T) {
	s := newTestServer(t, unlimited())

	for _, target := range []string{
		"/get-station-availability?db=nope",
		"/get-db-info?db=nope",
		"/get-subset?db=nope&latitude=0&longitude=0&depth=10&radius=30&NGLL=5",
	} {
		w := s.get(target)
		assert.Equal(t, handler.MsgDatabaseNotFound, w.Body.String(), target)
	}
}

func TestRouter_Databases(t *testing.T) {
	s := newTestServer(t, unlimited())

	assert.Equal(t, "single", s.get("/get-databases").Body.String())
}

func TestRouter_Subset(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/get-subset?db=single&latitude=-31.13&longitude=-72.09&depth=17.35&radius=30&NGLL=5&fortran=true")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "attachment; filename=temp.h5", w.Header().Get("Content-Disposition"))

	args := w.Body.String()
	assert.Contains(t, args, "--latitude -31.13")
	assert.Contains(t, args, "--radius 30")
	assert.Contains(t, args, "--ngll 5")
	assert.Contains(t, args, "--fortran")

	entries, err := os.ReadDir(s.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRouter_SubsetToolFailure(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/get-subset?db=single&latitude=0&longitude=0&depth=10&radius=999&NGLL=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, handler.MsgSubsetFailed))
	assert.Contains(t, body, "ValueError: no elements within radius")
	assert.Contains(t, body, "Traceback (most recent call last):")

	// Tool errors do not count against the breaker.
	health := s.breakers.GetHealth(bridge.BreakerName)
	require.NotNil(t, health)
	assert.True(t, health.IsHealthy())
}

func TestRouter_SystemStatus(t *testing.T) {
	s := newTestServer(t, unlimited())

	w := s.get("/ops/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Breakers, 1)
	assert.Equal(t, bridge.BreakerName, status.Breakers[0].Name)
}

func TestRouter_HealthAndReady(t *testing.T) {
	s := newTestServer(t, unlimited())

	for _, target := range []string{"/ops/health", "/ops/ready"} {
		w := s.get(target)
		assert.Equal(t, http.StatusOK, w.Code, target)

		var health models.Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, models.HealthStatusOK, health.Status)
	}
}

func TestRouter_SubsetRateLimit(t *testing.T) {
	s := newTestServer(t, config.RateLimitConfig{Standard: 100, Subset: 1})

	target := "/get-subset?db=single"
	assert.Equal(t, http.StatusOK, s.get(target).Code)

	w := s.get(target)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, middleware.RateLimitMessage, w.Body.String())

	// Other routes have their own budget.
	assert.Equal(t, http.StatusOK, s.get("/get-databases").Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, unlimited())

	req := httptest.NewRequest(http.MethodPost, "/get-subset", http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	s := newTestServer(t, unlimited())

	req := httptest.NewRequest(http.MethodGet, "/get-databases", http.NoBody)
	req.Header.Set("X-Request-Id", "req_client_supplied")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "req_client_supplied", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, unlimited())

	assert.Equal(t, http.StatusNotFound, s.get("/v1/ops/health").Code)
}
