package jobs

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tripcast/tripcast-admin/internal/platform/httpx"
	"github.com/tripcast/tripcast-admin/internal/shared"
)

// Handler exposes the audit export dispatch and job observability endpoints.
// Mounted under the rbac subtree, so the access decision middleware already
// gates it with rbac.read / rbac.write.
type Handler struct {
	client    *Client
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for export job endpoints.
func NewHandler(client *Client, inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{client: client, inspector: inspector, logger: logger}
}

// MountRoutes attaches export job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/audit-logs/export", h.enqueueExport)
	r.Get("/jobs/{jobID}", h.jobStatus)
	r.Get("/jobs", h.queueHealth)
}

type exportRequest struct {
	AdminID int64  `json:"admin_id,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	payload := AuditExportPayload{
		ExportID: uuid.NewString(),
		AdminID:  req.AdminID,
		Success:  req.Success,
	}
	if req.From != "" {
		t, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be RFC3339")
			return
		}
		payload.From = t
	}
	if req.To != "" {
		t, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be RFC3339")
			return
		}
		payload.To = t
	}
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		payload.RequestedBy = principal.GetID()
	}

	info, err := h.client.EnqueueAuditExport(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"export_id": payload.ExportID,
		"task_id":   info.ID,
		"queue":     info.Queue,
		"state":     info.State.String(),
	})
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	info, err := h.inspector.GetTaskInfo(QueueDefault, jobID)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown job id")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"task_id": info.ID,
		"queue":   info.Queue,
		"state":   info.State.String(),
		"retried": info.Retried,
	})
}

func (h *Handler) queueHealth(w http.ResponseWriter, r *http.Request) {
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs queue health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"pending":   info.Pending,
		"active":    info.Active,
		"retry":     info.Retry,
		"completed": info.Completed,
		"failed":    info.Failed,
	})
}
