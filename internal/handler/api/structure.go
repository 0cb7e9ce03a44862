package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	icache "WaveScan/internal/service/cache"
	"WaveScan/internal/service/metrics"
	"WaveScan/internal/service/quote"
	"WaveScan/internal/service/ratelimit"
	"WaveScan/internal/usecase"
	pkgcache "WaveScan/pkg/cache"
	xhttp "WaveScan/pkg/http"
	applogger "WaveScan/pkg/logger"
	"WaveScan/pkg/queue"

	"github.com/google/uuid"
)

type StructureHandler struct {
	prefilter   *usecase.PrefilterUseCase
	screener    *usecase.ScreenerUseCase
	store       domrepo.ResultStore
	q           queue.QueueService
	cache       icache.BytesCache
	candleCache pkgcache.Service
	rl          *ratelimit.Limiter
	l           *applogger.Logger
}

func NewStructureHandler(prefilter *usecase.PrefilterUseCase, screener *usecase.ScreenerUseCase) *StructureHandler {
	metrics.Register()
	return &StructureHandler{prefilter: prefilter, screener: screener, rl: ratelimit.New()}
}

func (h *StructureHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCandleCache injects the candle store so operators can purge it.
func (h *StructureHandler) SetCandleCache(c pkgcache.Service) { h.candleCache = c }

// SetStore injects the persistent result store. Without it, history endpoints
// serve from the in-memory scan summaries only.
func (h *StructureHandler) SetStore(s domrepo.ResultStore) { h.store = s }

// SetQueue injects the job queue. When present, POST /scan enqueues instead
// of running inline.
func (h *StructureHandler) SetQueue(q queue.QueueService) { h.q = q }

// SetLogger injects a structured logger.
func (h *StructureHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *StructureHandler) Prefilter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "prefilter"
		defer func() { metrics.StructureLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("structure.prefilter missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		days := xhttp.ParseIntDefault(r.URL.Query().Get("days"), 0)
		version := r.URL.Query().Get("version")
		if !h.rl.Allow(r.RemoteAddr+":prefilter", 5, 2) {
			if h.l != nil {
				h.l.Warn("structure.prefilter rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		// No handler-side cache: the use case memoizes per symbol/days/version.
		res, err := h.prefilter.Prefilter(r.Context(), usecase.PrefilterParams{Symbol: symbol, Days: days, Version: version})
		if err != nil {
			metrics.StructureErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("structure.prefilter error", applogger.Error(err))
			}
			http.Error(w, err.Error(), errStatus(err))
			return
		}
		writeJSON(w, h.l, endpoint, res)
	}
}

func (h *StructureHandler) Pivots() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "pivots"
		defer func() { metrics.StructureLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			if h.l != nil {
				h.l.Warn("structure.pivots missing symbol")
			}
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		scale := r.URL.Query().Get("scale")
		days := xhttp.ParseIntDefault(r.URL.Query().Get("days"), 0)
		if !h.rl.Allow(r.RemoteAddr+":pivots", 5, 2) {
			if h.l != nil {
				h.l.Warn("structure.pivots rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		cacheKey := pkgcache.GenerateKeyWithParams("pivots", symbol, scale, days)
		if h.cache != nil {
			if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
				if h.l != nil {
					h.l.Warn("structure.pivots cache_get_error", applogger.Error(err))
				}
			} else if ok {
				w.Header().Set("Content-Type", "application/json")
				if h.l != nil {
					h.l.Debug("structure.pivots cache_hit", applogger.String("key", cacheKey))
				}
				if _, err := w.Write(b); err != nil && h.l != nil {
					h.l.Warn("structure.pivots write_error", applogger.Error(err))
				}
				return
			}
			if h.l != nil {
				h.l.Debug("structure.pivots cache_miss", applogger.String("key", cacheKey))
			}
		}
		res, err := h.prefilter.Pivots(r.Context(), usecase.PivotsParams{Symbol: symbol, Scale: scale, Days: days})
		if err != nil {
			metrics.StructureErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("structure.pivots error", applogger.Error(err))
			}
			http.Error(w, err.Error(), errStatus(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		b, err := json.Marshal(res)
		if err != nil {
			if h.l != nil {
				h.l.Error("structure.pivots marshal_error", applogger.Error(err))
			}
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		if h.cache != nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil && h.l != nil {
				h.l.Warn("structure.pivots cache_set_error", applogger.Error(err))
			}
		}
		if _, err := w.Write(b); err != nil && h.l != nil {
			h.l.Warn("structure.pivots write_error", applogger.Error(err))
		}
	}
}

func (h *StructureHandler) Scan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "scan"
		defer func() { metrics.StructureLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.rl.Allow(r.RemoteAddr+":scan", 2, 0.2) {
			if h.l != nil {
				h.l.Warn("structure.scan rate_limited", applogger.String("remote", r.RemoteAddr))
			}
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		var req models.ScanRequest
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if h.l != nil {
				h.l.Warn("structure.scan bad_body", applogger.Error(err))
			}
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.RequestedBy == "" {
			req.RequestedBy = "api"
		}

		if h.q != nil {
			if req.ScanID == "" {
				req.ScanID = uuid.NewString()
			}
			if err := h.q.PublishMessage(r.Context(), usecase.ScanJobType, req); err != nil {
				metrics.StructureErrors.WithLabelValues(endpoint).Inc()
				if h.l != nil {
					h.l.Error("structure.scan enqueue_error", applogger.Error(err))
				}
				http.Error(w, "enqueue failed", http.StatusInternalServerError)
				return
			}
			metrics.ScansTotal.WithLabelValues("queued").Inc()
			if h.l != nil {
				h.l.Info("structure.scan queued", applogger.String("scan_id", req.ScanID))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			b, _ := json.Marshal(map[string]string{"scan_id": req.ScanID, "status": "queued"})
			if _, err := w.Write(b); err != nil && h.l != nil {
				h.l.Warn("structure.scan write_error", applogger.Error(err))
			}
			return
		}

		summary, err := h.screener.Scan(r.Context(), req)
		if err != nil {
			metrics.StructureErrors.WithLabelValues(endpoint).Inc()
			metrics.ScansTotal.WithLabelValues("error").Inc()
			if h.l != nil {
				h.l.Error("structure.scan error", applogger.Error(err))
			}
			http.Error(w, err.Error(), errStatus(err))
			return
		}
		outcome := "ok"
		if summary.Failed > 0 {
			outcome = "partial"
		}
		metrics.ScansTotal.WithLabelValues(outcome).Inc()
		metrics.ScanSymbols.WithLabelValues("api").Observe(float64(summary.Total))
		writeJSON(w, h.l, endpoint, summary)
	}
}

func (h *StructureHandler) ScanResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "scan_results"
		defer func() { metrics.StructureLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		scanID := r.URL.Query().Get("scan_id")
		if scanID == "" {
			http.Error(w, "scan_id required", http.StatusBadRequest)
			return
		}
		limit := xhttp.ParseIntDefault(r.URL.Query().Get("limit"), 100)
		if !h.rl.Allow(r.RemoteAddr+":scan_results", 5, 2) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		// Recent scans live in memory; older ones only in the store.
		if summary, ok := h.screener.Summary(scanID); ok {
			results := summary.Results
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}
			writeJSON(w, h.l, endpoint, results)
			return
		}
		if h.store != nil {
			results, err := h.store.ScanResults(r.Context(), scanID, limit)
			if err != nil {
				metrics.StructureErrors.WithLabelValues(endpoint).Inc()
				if h.l != nil {
					h.l.Error("structure.scan_results store_error", applogger.Error(err))
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if len(results) > 0 {
				writeJSON(w, h.l, endpoint, results)
				return
			}
		}
		http.Error(w, "scan not found", http.StatusNotFound)
	}
}

func (h *StructureHandler) Top() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := "top"
		defer func() { metrics.StructureLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

		limit := xhttp.ParseIntDefault(r.URL.Query().Get("limit"), 20)
		minScore := xhttp.ParseIntDefault(r.URL.Query().Get("min_score"), 0)
		days := xhttp.ParseIntDefault(r.URL.Query().Get("days"), 7)
		if !h.rl.Allow(r.RemoteAddr+":top", 5, 2) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		if h.store != nil {
			since := xhttp.ParseTimeDefault(r.URL.Query().Get("since"), time.Now().UTC().AddDate(0, 0, -days))
			since = xhttp.AlignBar(since, string(domrepo.TF1d))
			results, err := h.store.TopSymbols(r.Context(), limit, minScore, since)
			if err == nil {
				writeJSON(w, h.l, endpoint, results)
				return
			}
			metrics.StructureErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Warn("structure.top store_error", applogger.Error(err))
			}
		}
		// Fall back to the latest in-memory scan.
		summary, ok := h.screener.LastSummary()
		if !ok {
			http.Error(w, "no scans yet", http.StatusNotFound)
			return
		}
		top := h.screener.Top(summary.ScanID, limit, minScore)
		writeJSON(w, h.l, endpoint, top)
	}
}

// PurgeCache drops cached candle history by key prefix. Operators hit it
// after an upstream data correction so the next scan refetches clean bars.
func (h *StructureHandler) PurgeCache() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := "purge_cache"
		if h.candleCache == nil {
			http.Error(w, "candle cache not configured", http.StatusServiceUnavailable)
			return
		}
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "candles"
		}
		if err := h.candleCache.DeleteByPattern(r.Context(), pkgcache.BuildPattern(prefix)); err != nil {
			metrics.StructureErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("structure.purge_cache error", applogger.Error(err))
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if h.l != nil {
			h.l.Info("structure.purge_cache done", applogger.String("prefix", prefix))
		}
		writeJSON(w, h.l, endpoint, map[string]string{"purged": prefix})
	}
}

func (h *StructureHandler) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := map[string]interface{}{
			"status":  "ok",
			"version": h.prefilter.DefaultVersion(),
		}
		if h.store != nil {
			if err := h.store.Health(r.Context()); err != nil {
				res["status"] = "degraded"
				res["store"] = err.Error()
			} else {
				res["store"] = "ok"
			}
		}
		writeJSON(w, h.l, "healthz", res)
	}
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrUnknownVersion):
		return http.StatusBadRequest
	case errors.Is(err, quote.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, models.ErrMalformedSeries):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, l *applogger.Logger, endpoint string, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	b, err := json.Marshal(v)
	if err != nil {
		if l != nil {
			l.Error("structure."+endpoint+" marshal_error", applogger.Error(err))
		}
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(b); err != nil && l != nil {
		l.Warn("structure."+endpoint+" write_error", applogger.Error(err))
	}
}
