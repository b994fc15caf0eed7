package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditExport is the task type for exporting audit logs to CSV.
	TaskAuditExport = "audit:export"
)

// AuditExportPayload describes one audit log export request.
type AuditExportPayload struct {
	ExportID string    `json:"export_id"`
	AdminID  int64     `json:"admin_id,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Success  *bool     `json:"success,omitempty"`
	// RequestedBy records which admin asked for the export.
	RequestedBy int64 `json:"requested_by"`
}

// NewAuditExportTask constructs an Asynq task.
func NewAuditExportTask(payload AuditExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditExport, data, asynq.MaxRetry(3), asynq.TaskID(payload.ExportID)), nil
}
