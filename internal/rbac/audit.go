package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore persists and queries permission check records. Rows are
// append-only: nothing in the application updates or deletes them.
type AuditStore interface {
	Record(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filters AuditFilters) (AuditPage, error)
	QueryAll(ctx context.Context, filters AuditFilters) ([]AuditEntry, error)
}

// AuditFilters narrow an audit log query.
type AuditFilters struct {
	AdminID  int64
	From     time.Time
	To       time.Time
	Success  *bool
	Page     int
	PageSize int
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries  []AuditEntry
	Page     int
	PageSize int
	HasNext  bool
}

// PGAuditStore writes audit rows straight to the pool. Each insert is a
// single auto-committed statement, so a granted decision stays recorded even
// when the guarded handler fails afterwards.
type PGAuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore returns a new PGAuditStore.
func NewAuditStore(pool *pgxpool.Pool) *PGAuditStore {
	return &PGAuditStore{pool: pool}
}

// Record persists one permission check outcome.
func (s *PGAuditStore) Record(ctx context.Context, entry AuditEntry) error {
	if s == nil {
		return errors.New("rbac: audit store not initialised")
	}
	if entry.AdminID == 0 || entry.Permission == "" {
		return errors.New("rbac: audit entry requires admin_id and permission")
	}
	var permissionID any
	if entry.PermissionID > 0 {
		permissionID = entry.PermissionID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO permission_audit_logs
		   (admin_id, permission_id, permission_name, action, resource_type, resource_id, success, failure_reason, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))`,
		entry.AdminID, permissionID, entry.Permission, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Success, entry.FailureReason, entry.IPAddress, entry.UserAgent, nullableTime(entry.CreatedAt))
	return err
}

// Query returns one page of matching entries ordered newest first.
func (s *PGAuditStore) Query(ctx context.Context, filters AuditFilters) (AuditPage, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query, args := buildAuditQuery(filters)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize+1, offset)

	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return AuditPage{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return AuditPage{Entries: entries, Page: page, PageSize: pageSize, HasNext: hasNext}, nil
}

// QueryAll returns every matching entry without paging, newest first.
// Used by the CSV export job.
func (s *PGAuditStore) QueryAll(ctx context.Context, filters AuditFilters) ([]AuditEntry, error) {
	query, args := buildAuditQuery(filters)
	query += ` ORDER BY created_at DESC`
	return s.queryEntries(ctx, query, args)
}

func buildAuditQuery(filters AuditFilters) (string, []any) {
	query := `SELECT id, admin_id, COALESCE(permission_id, 0), permission_name, action, resource_type, resource_id, success, failure_reason, ip_address, user_agent, created_at
	 FROM permission_audit_logs WHERE 1=1`
	var args []any
	if filters.AdminID > 0 {
		args = append(args, filters.AdminID)
		query += ` AND admin_id = $` + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From.UTC())
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To.UTC())
		query += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	if filters.Success != nil {
		args = append(args, *filters.Success)
		query += ` AND success = $` + strconv.Itoa(len(args))
	}
	return query, args
}

func (s *PGAuditStore) queryEntries(ctx context.Context, query string, args []any) ([]AuditEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.PermissionID, &e.Permission, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Success, &e.FailureReason, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

var _ AuditStore = (*PGAuditStore)(nil)
