package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"github.com/tendant/simple-marshall/pkg/marshall/scan"
)

// ExportHandler re-exports items in bulk
type ExportHandler struct {
	service marshall.Service
	scanner *scan.Scanner
	logger  *slog.Logger
}

// NewExportHandler creates a new bulk export handler
func NewExportHandler(service marshall.Service, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{
		service: service,
		scanner: scan.New(service, logger),
		logger:  logger,
	}
}

// Routes returns the routes for bulk exports
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ExportAll)
	return r
}

// ExportAll exports every item, or every item of ?type=. ?dry_run=true only
// counts; ?limit=N caps the run. Individual failures are reported in the
// result, not as an error status.
func (h *ExportHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := scan.ScanOptions{
		TypeName:  q.Get("type"),
		Processor: &scan.ExportProcessor{Service: h.service},
	}

	if opts.TypeName != "" {
		if _, err := h.service.Schema(opts.TypeName); err != nil {
			writeError(w, r, statusFor(err), err.Error())
			return
		}
	}
	if v := q.Get("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid dry_run")
			return
		}
		opts.DryRun = dryRun
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	result, err := h.scanner.Scan(r.Context(), opts)
	if err != nil {
		h.logger.Error("Bulk export failed", "type", opts.TypeName, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("Bulk export finished",
		"type", opts.TypeName,
		"dry_run", opts.DryRun,
		"processed", result.TotalProcessed,
		"failed", result.TotalFailed)
	render.JSON(w, r, result)
}
