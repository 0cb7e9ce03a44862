package api

import (
	"errors"
	"net/http"
	"time"

	models "WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	"WaveScan/internal/service/quote"
	"WaveScan/internal/usecase"
	xhttp "WaveScan/pkg/http"
	xlogger "WaveScan/pkg/logger"
	"WaveScan/pkg/queue"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// StructureEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type StructureEchoHandler struct {
	logger    *xlogger.Logger
	prefilter *usecase.PrefilterUseCase
	screener  *usecase.ScreenerUseCase
	store     domrepo.ResultStore
	q         queue.QueueService
}

func NewStructureEchoHandler(logger *xlogger.Logger, prefilter *usecase.PrefilterUseCase, screener *usecase.ScreenerUseCase) *StructureEchoHandler {
	return &StructureEchoHandler{logger: logger, prefilter: prefilter, screener: screener}
}

// SetStore injects the persistent result store.
func (h *StructureEchoHandler) SetStore(s domrepo.ResultStore) { h.store = s }

// SetQueue injects the job queue used for async scan submission.
func (h *StructureEchoHandler) SetQueue(q queue.QueueService) { h.q = q }

func (h *StructureEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/prefilter", h.Prefilter)
	g.GET("/structure/:symbol/pivots", h.Pivots)
	g.POST("/scan", h.Scan)
	g.GET("/scan/:id/results", h.ScanResults)
	g.GET("/screener/top", h.Top)
}

func (h *StructureEchoHandler) Prefilter(c echo.Context) error {
	req := &models.PrefilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.prefilter.Prefilter(c.Request().Context(), usecase.PrefilterParams{
		Symbol:  req.Symbol,
		Days:    req.Days,
		Version: req.Version,
	})
	if err != nil {
		h.logger.Error("prefilter usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *StructureEchoHandler) Pivots(c echo.Context) error {
	req := &models.PivotsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.prefilter.Pivots(c.Request().Context(), usecase.PivotsParams{
		Symbol: req.Symbol,
		Scale:  req.Scale,
		Days:   req.Days,
	})
	if err != nil {
		h.logger.Error("pivots usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StructureEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanSubmitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	scanReq := models.ScanRequest{
		Symbols:     req.Symbols,
		Days:        req.Days,
		Version:     req.Version,
		RequestedBy: "api",
	}

	if h.q != nil {
		scanReq.ScanID = uuid.NewString()
		if err := h.q.PublishMessage(c.Request().Context(), usecase.ScanJobType, scanReq); err != nil {
			h.logger.Error("scan enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("scan could not be queued").WithError(err))
		}
		h.logger.Info("scan queued", xlogger.String("scan_id", scanReq.ScanID))
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{
			"scan_id": scanReq.ScanID,
			"status":  "queued",
		})
	}

	summary, err := h.screener.Scan(c.Request().Context(), scanReq)
	if err != nil {
		h.logger.Error("scan usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *StructureEchoHandler) ScanResults(c echo.Context) error {
	req := &models.ScanResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if summary, ok := h.screener.Summary(req.ScanID); ok {
		results := summary.Results
		if req.Limit > 0 && len(results) > req.Limit {
			results = results[:req.Limit]
		}
		return xhttp.SuccessResponse(c, results)
	}
	if h.store != nil {
		results, err := h.store.ScanResults(c.Request().Context(), req.ScanID, req.Limit)
		if err != nil {
			h.logger.Error("scan results store error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("scan results unavailable").WithError(err))
		}
		if len(results) > 0 {
			return xhttp.SuccessResponse(c, results)
		}
	}
	return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("scan %s not found", req.ScanID))
}

func (h *StructureEchoHandler) Top(c echo.Context) error {
	req := &models.TopSymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.store != nil {
		since := xhttp.ParseTimeDefault(req.Since, time.Now().UTC().AddDate(0, 0, -req.Days))
		since = xhttp.AlignBar(since, string(domrepo.TF1d))
		results, err := h.store.TopSymbols(c.Request().Context(), req.Limit, req.MinScore, since)
		if err == nil {
			return xhttp.SuccessResponse(c, results)
		}
		h.logger.Warn("top symbols store error", xlogger.Error(err))
	}
	summary, ok := h.screener.LastSummary()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no scans have run yet"))
	}
	return xhttp.SuccessResponse(c, h.screener.Top(summary.ScanID, req.Limit, req.MinScore))
}

// appError maps engine and data errors onto HTTP statuses.
func (h *StructureEchoHandler) appError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownVersion):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, quote.ErrNoData):
		return xhttp.NotFoundError("no candle data for symbol").WithError(err)
	case errors.Is(err, models.ErrMalformedSeries):
		return xhttp.UnprocessableError("candle series is malformed").WithError(err)
	default:
		return xhttp.InternalError("structure analysis failed").WithError(err)
	}
}
