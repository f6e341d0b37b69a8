package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qprlabs/kpi-engine/internal/config"
	"github.com/qprlabs/kpi-engine/internal/core/domain"
	"github.com/qprlabs/kpi-engine/internal/core/gap"
	"github.com/qprlabs/kpi-engine/internal/core/ports"
	"github.com/qprlabs/kpi-engine/internal/core/usecase"
	"github.com/qprlabs/kpi-engine/internal/infrastructure/authz"
	"github.com/qprlabs/kpi-engine/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg        config.Config
	ingest     ports.ReportIngestor
	approvals  ports.ApprovalService
	aggregates ports.AggregateReader
	analyses   ports.AnalysisStore
	activities ports.ActivityStore
	drafts     *usecase.EditDraftUseCase
	metrics    *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.ReportIngestor,
	approvals ports.ApprovalService,
	aggregates ports.AggregateReader,
	analyses ports.AnalysisStore,
	activities ports.ActivityStore,
	drafts *usecase.EditDraftUseCase,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:        cfg,
		ingest:     ingest,
		approvals:  approvals,
		aggregates: aggregates,
		analyses:   analyses,
		activities: activities,
		drafts:     drafts,
		metrics:    serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/reports", rt.uploadReport)
	mux.HandleFunc("/v1/analyses", rt.listAnalyses)
	mux.HandleFunc("/v1/analyses/", rt.analysisSubtree)
	mux.HandleFunc("/v1/aggregates", rt.getAggregate)
	mux.HandleFunc("/v1/indicators/recompute", rt.recomputeIndicator)
	mux.HandleFunc("/v1/gap/classify", rt.gapClassify)
	mux.HandleFunc("/v1/gap/interpret", rt.gapInterpret)
	mux.HandleFunc("/v1/gap/validate", rt.gapValidate)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, time.Duration(rt.cfg.APIQueueWaitMillis)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	year, err := strconv.Atoi(r.FormValue("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'year' must be an integer"})
		return
	}
	quarter, err := strconv.Atoi(r.FormValue("quarter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'quarter' must be an integer"})
		return
	}
	unit := strings.TrimSpace(r.FormValue("unit"))
	if unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'unit' is required"})
		return
	}

	analysis, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		year, quarter, unit,
		file,
	)
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, analysis)
}

func (rt *Router) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query param 'year' must be an integer"})
		return
	}
	quarter, err := strconv.Atoi(r.URL.Query().Get("quarter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query param 'quarter' must be an integer"})
		return
	}

	analyses, err := rt.analyses.ListByPeriod(r.Context(), year, quarter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

// analysisSubtree dispatches /v1/analyses/{id}[/approve|/reject|/activities/{activityID}].
func (rt *Router) analysisSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/analyses/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "analysis id is required"})
		return
	}
	analysisID := segments[0]

	switch {
	case len(segments) == 1:
		rt.analysisResource(w, r, analysisID)
	case len(segments) == 2 && segments[1] == "approve":
		rt.approveAnalysis(w, r, analysisID)
	case len(segments) == 2 && segments[1] == "reject":
		rt.rejectAnalysis(w, r, analysisID)
	case len(segments) == 3 && segments[1] == "activities":
		rt.activityResource(w, r, analysisID, segments[2])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown analysis resource"})
	}
}

func (rt *Router) analysisResource(w http.ResponseWriter, r *http.Request, analysisID string) {
	switch r.Method {
	case http.MethodGet:
		rt.getAnalysis(w, r, analysisID)
	case http.MethodDelete:
		principal := authz.PrincipalFromBearer(r.Header.Get("Authorization"))
		if err := rt.approvals.Delete(r.Context(), analysisID, principal); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request, analysisID string) {
	analysis, err := rt.analyses.GetByID(r.Context(), analysisID)
	if err != nil {
		writeError(w, err)
		return
	}
	activities, err := rt.activities.ListByAnalysis(r.Context(), analysisID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analysis":   analysis,
		"activities": activities,
	})
}

func (rt *Router) approveAnalysis(w http.ResponseWriter, r *http.Request, analysisID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	principal := authz.PrincipalFromBearer(r.Header.Get("Authorization"))
	start := time.Now()
	receipt, err := rt.approvals.Approve(r.Context(), analysisID, principal)
	if rt.metrics != nil {
		rt.metrics.RecordDecision(serviceName, "approve", time.Since(start), receipt.UpdatedIndicators, len(receipt.SkippedIndicators))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (rt *Router) rejectAnalysis(w http.ResponseWriter, r *http.Request, analysisID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	principal := authz.PrincipalFromBearer(r.Header.Get("Authorization"))
	start := time.Now()
	err := rt.approvals.Reject(r.Context(), analysisID, principal, req.Reason)
	if rt.metrics != nil {
		rt.metrics.RecordDecision(serviceName, "reject", time.Since(start), 0, 0)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.AnalysisRejected)})
}

func (rt *Router) activityResource(w http.ResponseWriter, r *http.Request, analysisID, activityID string) {
	switch r.Method {
	case http.MethodPatch:
		var patch usecase.ActivityPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		activity, err := rt.drafts.UpdateActivity(r.Context(), analysisID, activityID, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	case http.MethodDelete:
		if err := rt.drafts.DeleteActivity(r.Context(), analysisID, activityID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getAggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := r.URL.Query()
	kra := query.Get("kra")
	initiative := query.Get("indicator")
	if kra == "" || initiative == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query params 'kra' and 'indicator' are required"})
		return
	}
	year, err := strconv.Atoi(query.Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query param 'year' must be an integer"})
		return
	}

	var quarter *int
	if raw := query.Get("quarter"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 1 || q > 4 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query param 'quarter' must be 1..4"})
			return
		}
		quarter = &q
	}

	aggregate, err := rt.aggregates.Aggregate(r.Context(), kra, initiative, year, quarter)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAggregateRead(serviceName, aggregate.Status == domain.AggregatePending)
	}
	writeJSON(w, http.StatusOK, aggregate)
}

func (rt *Router) recomputeIndicator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		KRA       string `json:"kra"`
		Indicator string `json:"indicator"`
		Year      int    `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.KRA == "" || req.Indicator == "" || req.Year == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kra, indicator and year are required"})
		return
	}

	rebuilt, err := rt.aggregates.RecomputeIndicator(r.Context(), req.KRA, req.Indicator, req.Year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rebuilt_aggregates": rebuilt})
}

func (rt *Router) gapClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	kind := domain.ParseMeasurementKind(r.URL.Query().Get("kind"))
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":     kind,
		"category": gap.Classify(kind),
	})
}

func (rt *Router) gapInterpret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	category := gap.Category(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("category"))))
	writeJSON(w, http.StatusOK, gap.Interpret(category))
}

func (rt *Router) gapValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Text string `json:"text"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	result := gap.Validate(req.Text, domain.ParseMeasurementKind(req.Kind))
	if rt.metrics != nil {
		rt.metrics.RecordRemedyValidation(serviceName, result.IsValid)
	}
	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
