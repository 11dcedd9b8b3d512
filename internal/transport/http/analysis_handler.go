package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "salescli/internal/errors"
	"salescli/internal/infrastructure"
	"salescli/internal/middleware"
	"salescli/internal/services"
	api "salescli/pkg/contracts/api/v1"
	"salescli/pkg/contracts/domain"
)

// AnalysesPath is where the analysis routes are mounted
const AnalysesPath = "/api/v1/analyses"

// multipartMemory is how much of an upload is held in memory before
// spilling to a temporary file
const multipartMemory = 8 << 20

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	maxUpload    int64
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler. maxUpload <= 0
// disables the upload size limit.
func NewAnalysisHandler(service AnalysisServiceInterface, validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, maxUpload int64, logger *slog.Logger) *AnalysisHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = middleware.NewValidator(logger)
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger)
	}

	return &AnalysisHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
		tracer:       otel.Tracer("analysis-handler"),
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// Routes returns a chi router for analysis endpoints
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).
		Post("/", h.CreateAnalysis)
	r.Get("/", h.ListAnalyses)
	r.Get("/{id}", h.GetAnalysis)
	r.Get("/{id}/artifacts/{name}", h.DownloadArtifact)

	return r
}

func (h *AnalysisHandler) startSpan(r *http.Request, name string) (*http.Request, trace.Span) {
	ctx, span := h.tracer.Start(r.Context(), name,
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("request_id", middleware.GetReqID(r.Context())),
			attribute.String("component", "analysis_handler"),
		),
	)
	return r.WithContext(ctx), span
}

func (h *AnalysisHandler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.errorHandler.HandleError(w, r, err)
}

// CreateAnalysis handles POST /api/v1/analyses. The pipeline runs
// synchronously; the response carries the finished run.
// @Summary Analyze a sales file
// @Tags analyses
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV, TSV or XLSX sales file"
// @Param policy formData string false "Missing value policy"
// @Param granularity formData string false "Period granularity"
// @Param charts formData string false "Comma separated chart types"
// @Param exports formData string false "Comma separated export formats"
// @Success 201 {object} api.AnalysisResponse
// @Failure 400 {object} apperrors.ProblemDetails
// @Failure 413 {object} apperrors.ProblemDetails
// @Failure 422 {object} apperrors.ProblemDetails
// @Router /analyses [post]
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "analysis_handler.create")
	defer span.End()
	ctx := r.Context()

	if h.maxUpload > 0 {
		if r.ContentLength > h.maxUpload {
			h.fail(w, r, span, apperrors.ErrPayloadTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.fail(w, r, span, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			err = apperrors.ErrValidation("file", "file is required")
		} else {
			err = apperrors.InvalidRequestWithError(err)
		}
		h.fail(w, r, span, err)
		return
	}
	defer file.Close()

	req, err := parseAnalysisForm(r.MultipartForm.Value)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("upload.filename", header.Filename),
		attribute.Int64("upload.size", header.Size),
	)
	h.logger.InfoContext(ctx, "analysis requested",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.String("policy", req.Policy),
		slog.String("granularity", req.Granularity))

	run, err := h.service.Analyze(ctx, services.Upload{Filename: header.Filename, Content: file}, req)
	if err != nil {
		if run == nil {
			h.fail(w, r, span, err)
			return
		}
		// The run exists and can be inspected even though it failed
		span.SetAttributes(attribute.String("run.id", run.ID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.WarnContext(ctx, "analysis failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()))

		problem := h.errorHandler.ErrorToProblem(err, r).
			WithExtension("trace_id", infrastructure.GetTraceID(ctx)).
			WithExtension("run_id", run.ID).
			WithExtension("run", run)
		w.Header().Set("Location", runPath(run.ID))
		render.Render(w, r, problem)
		return
	}

	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.status", string(run.Status)),
	)
	h.logger.InfoContext(ctx, "analysis completed",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)))

	w.Header().Set("Location", runPath(run.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, analysisResponse(run))
}

// ListAnalyses handles GET /api/v1/analyses
// @Summary List analyses
// @Tags analyses
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Run status"
// @Success 200 {object} api.AnalysisListResponse
// @Failure 400 {object} apperrors.ProblemDetails
// @Router /analyses [get]
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "analysis_handler.list")
	defer span.End()

	page, err := middleware.QueryInt(r, "page", 1, 1<<20, 1)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	pageSize, err := middleware.QueryInt(r, "page_size", 1, 100, 20)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	req := api.AnalysisListRequest{
		PaginationRequest: api.PaginationRequest{Page: page, PageSize: pageSize},
		Status:            strings.ToLower(r.URL.Query().Get("status")),
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.fail(w, r, span, err)
		return
	}

	runs, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if runs == nil {
		runs = []*domain.Run{}
	}

	render.JSON(w, r, api.AnalysisListResponse{
		Runs:     runs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetAnalysis handles GET /api/v1/analyses/{id}
// @Summary Get an analysis
// @Tags analyses
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} api.AnalysisResponse
// @Failure 404 {object} apperrors.ProblemDetails
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "analysis_handler.get")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("run.id", id))

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	render.JSON(w, r, analysisResponse(run))
}

// DownloadArtifact handles GET /api/v1/analyses/{id}/artifacts/{name}
// @Summary Download an artifact
// @Tags analyses
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param name path string true "Artifact file name"
// @Success 200 {file} file
// @Failure 404 {object} apperrors.ProblemDetails
// @Router /analyses/{id}/artifacts/{name} [get]
func (h *AnalysisHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "analysis_handler.download")
	defer span.End()

	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	span.SetAttributes(attribute.String("run.id", id), attribute.String("artifact", name))

	if err := h.validator.ValidateVar("name", name, "filename"); err != nil {
		h.fail(w, r, span, err)
		return
	}

	path, err := h.service.ArtifactPath(r.Context(), id, name)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.fail(w, r, span, apperrors.NewNotFoundError("artifact "+name))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// parseAnalysisForm reads the optional analysis fields. charts and exports
// may be repeated or comma separated.
func parseAnalysisForm(form url.Values) (api.AnalysisRequest, error) {
	req := api.AnalysisRequest{
		Policy:      strings.ToLower(strings.TrimSpace(form.Get("policy"))),
		Granularity: strings.ToLower(strings.TrimSpace(form.Get("granularity"))),
		Sheet:       strings.TrimSpace(form.Get("sheet")),
		ChartFormat: strings.ToLower(strings.TrimSpace(form.Get("chart_format"))),
		Charts:      splitValues(form["charts"]),
		Exports:     splitValues(form["exports"]),
	}

	if v := strings.TrimSpace(form.Get("fill_gaps")); v != "" {
		fillGaps, err := strconv.ParseBool(v)
		if err != nil {
			return req, apperrors.ErrValidation("fill_gaps", "fill_gaps must be a boolean")
		}
		req.FillGaps = fillGaps
	}
	return req, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.ErrPayloadTooLarge
	}
	return apperrors.InvalidRequestWithError(err)
}

func runPath(id string) string {
	return AnalysesPath + "/" + url.PathEscape(id)
}

func analysisResponse(run *domain.Run) api.AnalysisResponse {
	links := api.Links{Self: runPath(run.ID)}
	if run.Report != nil && len(run.Report.Artifacts) > 0 {
		links.Artifacts = make(map[string]string, len(run.Report.Artifacts))
		for _, artifact := range run.Report.Artifacts {
			links.Artifacts[artifact.Name] = links.Self + "/artifacts/" + url.PathEscape(artifact.Name)
		}
	}
	return api.AnalysisResponse{Run: run, Links: links}
}
