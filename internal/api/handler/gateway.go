// Package handler provides HTTP handlers for the gf3d query server.
package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gf3d/gf3dserver/internal/api/middleware"
	"github.com/gf3d/gf3dserver/internal/api/models"
	"github.com/gf3d/gf3dserver/internal/api/response"
	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/registry"
)

// SubsetFilename is the download name of every subset.
const SubsetFilename = "temp.h5"

// Catalog lists databases and their station files.
type Catalog interface {
	Aliases() []string
	Len() int
	StationFiles(alias string) ([]string, error)
	Stations(alias string) ([]registry.Station, error)
}

// GatewayConfig holds the dependencies of GatewayHandler.
type GatewayConfig struct {
	Catalog Catalog
	Library gfdb.Library
	Logger  zerolog.Logger

	// StrictStatus sends "400 ..." messages with HTTP 400 instead of 200.
	StrictStatus bool

	// ScratchDir receives subset files while they are streamed. Empty means
	// the OS temp directory.
	ScratchDir string

	// ExposeErrors includes library error messages and stack traces in
	// subset failure responses.
	ExposeErrors bool
}

// GatewayHandler serves the database query routes.
type GatewayHandler struct {
	catalog      Catalog
	library      gfdb.Library
	logger       zerolog.Logger
	strict       bool
	scratchDir   string
	exposeErrors bool
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(cfg GatewayConfig) *GatewayHandler {
	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	return &GatewayHandler{
		catalog:      cfg.Catalog,
		library:      cfg.Library,
		logger:       cfg.Logger,
		strict:       cfg.StrictStatus,
		scratchDir:   scratch,
		exposeErrors: cfg.ExposeErrors,
	}
}

func (h *GatewayHandler) clientError(w http.ResponseWriter, r *http.Request, msg string) {
	response.ClientError(w, r, h.strict, msg)
}

func (h *GatewayHandler) internalError(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusInternalServerError, middleware.InternalErrorMessage)
}

func (h *GatewayHandler) requestLogger(r *http.Request) zerolog.Logger {
	return h.logger.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()
}

// lookupError writes the message for a registry error. It reports whether
// err was one it knows.
func (h *GatewayHandler) lookupError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, registry.ErrDatabaseNotFound):
		h.clientError(w, r, MsgDatabaseNotFound)
	case errors.Is(err, registry.ErrNoStationFiles):
		h.clientError(w, r, MsgNoStationFiles)
	default:
		return false
	}
	return true
}

// Databases handles GET /get-databases - registered aliases, comma separated.
func (h *GatewayHandler) Databases(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusOK, strings.Join(h.catalog.Aliases(), ","))
}

// StationAvailability handles GET /get-station-availability - the NET.STA
// pairs of a database.
func (h *GatewayHandler) StationAvailability(w http.ResponseWriter, r *http.Request) {
	q, perr := models.ParseDatabaseQuery(r.URL.Query())
	if perr != nil {
		h.clientError(w, r, ParamMessage(perr))
		return
	}

	stations, err := h.catalog.Stations(q.DB)
	if err != nil {
		if h.lookupError(w, r, err) {
			return
		}
		log := h.requestLogger(r)
		log.Error().Err(err).Str("db", q.DB).Msg("list stations")
		h.internalError(w, r)
		return
	}

	pairs := make([]string, len(stations))
	for i, st := range stations {
		pairs[i] = st.NetSta()
	}
	response.Text(w, r, http.StatusOK, strings.Join(pairs, ","))
}

// DatabaseInfo handles GET /get-db-info - scalar header of the first
// station file of a database.
func (h *GatewayHandler) DatabaseInfo(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r)

	q, perr := models.ParseDatabaseQuery(r.URL.Query())
	if perr != nil {
		h.clientError(w, r, ParamMessage(perr))
		return
	}

	files, err := h.catalog.StationFiles(q.DB)
	if err != nil {
		if h.lookupError(w, r, err) {
			return
		}
		log.Error().Err(err).Str("db", q.DB).Msg("list station files")
		h.internalError(w, r)
		return
	}

	manager, err := h.library.Open(files[:1])
	if err != nil {
		log.Error().Err(err).Str("db", q.DB).Msg("open station file")
		h.internalError(w, r)
		return
	}

	header, err := manager.LoadScalarHeader(r.Context())
	if err != nil {
		_, stack := gfdb.Traced(err)
		log.Error().Err(err).Str("db", q.DB).Str("station_file", files[0]).Str("stack", stack).Msg("load scalar header")
		h.internalError(w, r)
		return
	}

	response.Text(w, r, http.StatusOK, header.String())
}

// Subset handles GET /get-subset - extract a subset and send it as a
// download.
func (h *GatewayHandler) Subset(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r)

	req, perr := models.ParseSubsetRequest(r.URL.Query())
	if perr != nil {
		h.clientError(w, r, ParamMessage(perr))
		return
	}

	event := log.Info().
		Str("db", req.DB).
		Float64("latitude", req.Latitude).
		Float64("longitude", req.Longitude).
		Float64("depth", req.Depth).
		Float64("radius", req.Radius).
		Int("ngll", req.NGLL).
		Bool("fortran", req.Fortran)
	if req.Duration != nil {
		event = event.Float64("duration", *req.Duration)
	}
	if req.NetSta != "" {
		event = event.Str("netsta", req.NetSta)
	}
	event.Msg("subset requested")

	files, err := h.catalog.StationFiles(req.DB)
	if err != nil {
		if h.lookupError(w, r, err) {
			return
		}
		log.Error().Err(err).Str("db", req.DB).Msg("list station files")
		h.internalError(w, r)
		return
	}

	outfile := filepath.Join(h.scratchDir, "subset-"+uuid.New().String()+".h5")
	defer func() {
		if err := os.Remove(outfile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("outfile", outfile).Msg("remove subset file")
		}
	}()

	if err := h.writeSubset(r, files, outfile, req); err != nil {
		message, stack := gfdb.Traced(err)
		log.Error().Err(err).Str("db", req.DB).Str("stack", stack).Msg("subset failed")
		middleware.SetOutcome(r.Context(), middleware.OutcomeFailed)
		if !h.exposeErrors {
			message, stack = "request id: "+middleware.GetRequestID(r.Context()), ""
		}
		h.clientError(w, r, SubsetFailedMessage(message, stack))
		return
	}

	f, err := os.Open(outfile)
	if err != nil {
		log.Error().Err(err).Str("outfile", outfile).Msg("open subset file")
		h.internalError(w, r)
		return
	}
	defer f.Close()

	if err := response.Attachment(w, r, SubsetFilename, f); err != nil {
		log.Error().Err(err).Str("outfile", outfile).Msg("send subset file")
		h.internalError(w, r)
		return
	}
	log.Info().Str("db", req.DB).Int("station_files", len(files)).Msg("subset sent")
}

func (h *GatewayHandler) writeSubset(r *http.Request, files []string, outfile string, req models.SubsetRequest) error {
	manager, err := h.library.Open(files)
	if err != nil {
		return err
	}
	if err := manager.LoadHeaderVariables(r.Context()); err != nil {
		return err
	}
	return manager.WriteSubset(r.Context(), outfile, req.Query())
}
