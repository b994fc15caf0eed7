package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tripcast/tripcast-admin/internal/rbac"
)

// AuditExporter streams filtered audit rows into CSV files on disk.
type AuditExporter struct {
	Audit  rbac.AuditStore
	Dir    string
	Logger *slog.Logger
}

// HandleTask processes one TaskAuditExport task.
func (e *AuditExporter) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload AuditExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ExportID == "" {
		return asynq.SkipRetry
	}

	entries, err := e.Audit.QueryAll(ctx, rbac.AuditFilters{
		AdminID: payload.AdminID,
		From:    payload.From,
		To:      payload.To,
		Success: payload.Success,
	})
	if err != nil {
		return fmt.Errorf("jobs: query audit logs: %w", err)
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("jobs: create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, "audit-"+payload.ExportID+".csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("jobs: create export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"id", "admin_id", "permission", "action", "resource_type", "resource_id", "success", "failure_reason", "ip_address", "user_agent", "created_at"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			strconv.FormatInt(entry.AdminID, 10),
			entry.Permission,
			entry.Action,
			entry.ResourceType,
			entry.ResourceID,
			strconv.FormatBool(entry.Success),
			entry.FailureReason,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	if e.Logger != nil {
		e.Logger.Info("audit export complete",
			slog.String("export_id", payload.ExportID),
			slog.Int("rows", len(entries)),
			slog.String("path", path))
	}
	return nil
}
