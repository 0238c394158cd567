package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"procurement-workflow/internal/config"
	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/realtime"
	"procurement-workflow/internal/sanitize"
	"procurement-workflow/internal/temporal"
	"procurement-workflow/internal/upload"
)

type ProcessFeed interface {
	Snapshot() realtime.Snapshot
	Subscribe(listener func(realtime.Snapshot)) func()
}

type Submitter interface {
	Submit(ctx context.Context, processID string, stage domain.Stage, file upload.File) (upload.Outcome, error)
}

type ResultDeliverer interface {
	Deliver(ctx context.Context, processID string, stage domain.Stage, signal temporal.VerificationResultSignal) (string, error)
}

type EndpointSettings interface {
	Endpoints(ctx context.Context) (map[domain.Stage]string, error)
	SetEndpoint(ctx context.Context, stage domain.Stage, raw string) (string, error)
}

type Handler struct {
	cfg       config.Config
	processes ProcessFeed
	uploads   Submitter
	results   ResultDeliverer
	endpoints EndpointSettings
	logger    *slog.Logger
}

type collectionResponse struct {
	Connection realtime.ConnectionState `json:"connection"`
	Error      string                   `json:"error,omitempty"`
	Items      []domain.Process         `json:"items"`
}

type processResponse struct {
	domain.Process
	Blocked map[domain.Stage]bool `json:"blocked"`
}

type resultRequest struct {
	Status         string          `json:"status"`
	ConflictReason string          `json:"conflictReason,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	SubmissionID   string          `json:"submissionId,omitempty"`
}

type endpointRequest struct {
	URL string `json:"url"`
}

func NewHandler(cfg config.Config, processes ProcessFeed, uploads Submitter, results ResultDeliverer, endpoints EndpointSettings, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		processes: processes,
		uploads:   uploads,
		results:   results,
		endpoints: endpoints,
		logger:    logger.With("system", "api"),
	}
}

func (h *Handler) ListProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collection(r, h.processes.Snapshot()))
}

func (h *Handler) GetProcess(w http.ResponseWriter, r *http.Request, processID string) {
	processID = sanitize.String(processID)
	for _, p := range h.processes.Snapshot().Processes {
		if p.ID != processID {
			continue
		}
		blocked := make(map[domain.Stage]bool, len(domain.Stages))
		for _, stage := range domain.Stages {
			blocked[stage] = domain.IsBlocked(p, stage)
		}
		writeJSON(w, http.StatusOK, processResponse{Process: p, Blocked: blocked})
		return
	}
	h.writeError(w, fmt.Errorf("%w: %s", ErrProcessNotFound, processID))
}

// StreamProcesses pushes one server-sent event per collection snapshot,
// filtered by the same status and q parameters as ListProcesses. Slow clients
// only ever see the latest snapshot.
func (h *Handler) StreamProcesses(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	updates := make(chan realtime.Snapshot, 1)
	unsubscribe := h.processes.Subscribe(func(s realtime.Snapshot) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			data, err := json.Marshal(h.collection(r, snap))
			if err != nil {
				h.logger.Error("encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) SubmitDocument(w http.ResponseWriter, r *http.Request, processID string, stage domain.Stage) {
	ctx, cancel := context.WithTimeout(r.Context(), h.submitTimeout())
	defer cancel()

	limit := h.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, ErrFileTooLarge)
			return
		}
		h.writeError(w, fmt.Errorf("%w: invalid multipart payload", ErrInvalidRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: file form field is required", ErrInvalidRequest))
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: failed to read file", ErrInvalidRequest))
		return
	}
	if int64(len(body)) > limit {
		h.writeError(w, ErrFileTooLarge)
		return
	}

	out, err := h.uploads.Submit(ctx, processID, stage, upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     body,
	})
	if err != nil {
		status := MapHTTPStatus(err)
		payload := map[string]any{"error": err.Error()}
		if errors.Is(err, upload.ErrDispatchFailure) {
			payload["outcome"] = out
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("submission failed", "process_id", processID, "stage", stage, "error", err)
		}
		writeJSON(w, status, payload)
		return
	}

	status := http.StatusOK
	if out.Deferred {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func (h *Handler) SubmitResult(w http.ResponseWriter, r *http.Request, processID string, stage domain.Stage) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid json", ErrInvalidRequest))
		return
	}

	processID = sanitize.String(processID)
	if processID == "" {
		h.writeError(w, fmt.Errorf("%w: empty process id", ErrProcessNotFound))
		return
	}
	if !stage.IsSubmittable() {
		h.writeError(w, fmt.Errorf("%w: %q", domain.ErrInvalidStage, stage))
		return
	}
	status := domain.StepStatus(sanitize.String(req.Status))
	if !status.IsResult() {
		h.writeError(w, fmt.Errorf("%w: status must be verified or conflict", upload.ErrInvalidResult))
		return
	}

	signal := temporal.VerificationResultSignal{
		Status:         status,
		ConflictReason: sanitize.String(req.ConflictReason),
		Data:           req.Data,
		SubmissionID:   sanitize.String(req.SubmissionID),
	}
	workflowID, err := h.results.Deliver(ctx, processID, stage, signal)
	if err != nil {
		h.logger.Error("deliver verification result", "process_id", processID, "stage", stage, "error", err)
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"processId":  processID,
		"stage":      stage,
		"status":     status,
		"workflowId": workflowID,
	})
}

func (h *Handler) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	endpoints, err := h.endpoints.Endpoints(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endpoints)
}

func (h *Handler) PutEndpoint(w http.ResponseWriter, r *http.Request, stage domain.Stage) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid json", ErrInvalidRequest))
		return
	}
	endpoint, err := h.endpoints.SetEndpoint(ctx, stage, req.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stage": stage, "url": endpoint})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	snap := h.processes.Snapshot()
	if snap.State != realtime.StateConnected {
		payload := map[string]string{"status": "not_ready", "connection": string(snap.State)}
		if snap.Err != nil {
			payload["error"] = snap.Err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) collection(r *http.Request, snap realtime.Snapshot) collectionResponse {
	q := r.URL.Query()
	resp := collectionResponse{
		Connection: snap.State,
		Items:      domain.Filter(snap.Processes, domain.ParseStatusFilter(q.Get("status")), q.Get("q")),
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// submitTimeout covers every dispatch attempt plus the store writes around it.
func (h *Handler) submitTimeout() time.Duration {
	attempts := h.cfg.DispatchMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return time.Duration(attempts)*h.cfg.DispatchTimeout() + 15*time.Second
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, MapHTTPStatus(err), map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
