package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast-admin/internal/rbac"
	_ "github.com/tripcast/tripcast-admin/testing"
)

type stubAuditStore struct {
	entries     []rbac.AuditEntry
	gotFilters  rbac.AuditFilters
	queryAllErr error
}

func (s *stubAuditStore) Record(ctx context.Context, entry rbac.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditStore) Query(ctx context.Context, filters rbac.AuditFilters) (rbac.AuditPage, error) {
	return rbac.AuditPage{Entries: s.entries}, nil
}

func (s *stubAuditStore) QueryAll(ctx context.Context, filters rbac.AuditFilters) ([]rbac.AuditEntry, error) {
	s.gotFilters = filters
	if s.queryAllErr != nil {
		return nil, s.queryAllErr
	}
	return s.entries, nil
}

func exportTask(t *testing.T, payload AuditExportPayload) *asynq.Task {
	t.Helper()
	task, err := NewAuditExportTask(payload)
	require.NoError(t, err)
	return task
}

func TestAuditExportWritesCSV(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := &stubAuditStore{entries: []rbac.AuditEntry{
		{ID: 1, AdminID: 7, Permission: "users.read", Action: "read", ResourceType: "users",
			Success: true, IPAddress: "10.0.0.1", UserAgent: "curl", CreatedAt: created},
		{ID: 2, AdminID: 7, Permission: "users.write", Action: "write", ResourceType: "users",
			Success: false, FailureReason: "admin lacks permission users.write", CreatedAt: created},
	}}
	dir := t.TempDir()
	exporter := &AuditExporter{Audit: store, Dir: dir}

	task := exportTask(t, AuditExportPayload{ExportID: "exp-1", AdminID: 7, RequestedBy: 9})
	require.NoError(t, exporter.HandleTask(context.Background(), task))

	file, err := os.Open(filepath.Join(dir, "audit-exp-1.csv"))
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, []string{"1", "7", "users.read", "read", "users", "", "true", "", "10.0.0.1", "curl", "2026-08-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "admin lacks permission users.write", rows[2][7])

	assert.Equal(t, int64(7), store.gotFilters.AdminID)
}

func TestAuditExportEmptyResultStillWritesHeader(t *testing.T) {
	dir := t.TempDir()
	exporter := &AuditExporter{Audit: &stubAuditStore{}, Dir: dir}

	task := exportTask(t, AuditExportPayload{ExportID: "exp-empty"})
	require.NoError(t, exporter.HandleTask(context.Background(), task))

	data, err := os.ReadFile(filepath.Join(dir, "audit-exp-empty.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,admin_id,permission")
}

func TestAuditExportBadPayloadSkipsRetry(t *testing.T) {
	exporter := &AuditExporter{Audit: &stubAuditStore{}, Dir: t.TempDir()}

	err := exporter.HandleTask(context.Background(), asynq.NewTask(TaskAuditExport, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = exporter.HandleTask(context.Background(), asynq.NewTask(TaskAuditExport, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditExportQueryFailurePropagates(t *testing.T) {
	store := &stubAuditStore{queryAllErr: errors.New("pool exhausted")}
	exporter := &AuditExporter{Audit: store, Dir: t.TempDir()}

	task := exportTask(t, AuditExportPayload{ExportID: "exp-err"})
	err := exporter.HandleTask(context.Background(), task)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditExportPayloadRoundTrip(t *testing.T) {
	success := true
	payload := AuditExportPayload{
		ExportID:    "exp-42",
		AdminID:     3,
		From:        time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Success:     &success,
		RequestedBy: 9,
	}
	task := exportTask(t, payload)
	assert.Equal(t, TaskAuditExport, task.Type())

	var decoded AuditExportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload, decoded)
}
