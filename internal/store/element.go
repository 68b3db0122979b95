package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/idgen"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// Create inserts el, failing with errs.KindConflict/CodeAlreadyExists if
// its id is already taken. The content hash is computed first; the
// insert and its dirty mark then happen inside a single BEGIN IMMEDIATE
// transaction, mirroring the teacher's CreateIssue.
func (s *Store) Create(ctx context.Context, el *types.Element) error {
	if err := el.Validate(); err != nil {
		return errs.Validation("store.Create", errs.CodeInvalidInput, err)
	}

	tagsJSON, err := json.Marshal(el.Tags)
	if err != nil {
		return errs.Validation("store.Create", errs.CodeInvalidTag, err)
	}
	metadata := el.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	taskStatus, taskPriority, taskComplexity, taskAssignee := extractTaskFields(el)

	hash, err := idgen.ContentHash(el)
	if err != nil {
		return errs.Validation("store.Create", errs.CodeInvalidMetadata, err)
	}

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		var exists int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements WHERE id = ?`, el.ID).Scan(&exists); err != nil {
			return errs.Storage("store.Create", errs.CodeDatabaseError, err)
		}
		if exists > 0 {
			return errs.AlreadyExists("store.Create", fmt.Errorf("element %s already exists", el.ID))
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO elements (
				id, type, created_at, updated_at, created_by, tags, metadata,
				content_hash, deleted_at, task_status, task_priority, task_complexity, task_assignee
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, el.ID, string(el.Type), el.CreatedAt, el.UpdatedAt, el.CreatedBy, string(tagsJSON), string(metadata),
			hash, nullTime(el.DeletedAt), taskStatus, taskPriority, taskComplexity, taskAssignee)
		if err != nil {
			return errs.Storage("store.Create", errs.CodeDatabaseError, err)
		}

		return markDirtyTx(ctx, conn, el.ID, hash)
	})
}

// immutableFields cannot be changed by Update; attempting to do so
// returns errs.KindConstraint/CodeImmutable.
var immutableFields = map[string]bool{"id": true, "createdAt": true, "createdBy": true}

// Update applies patch to the element identified by id, bumping
// updatedAt, recomputing the content hash, and marking it dirty.
// Returns errs.KindNotFound if id is unknown.
func (s *Store) Update(ctx context.Context, id string, patch map[string]interface{}, actor string) error {
	for field := range patch {
		if immutableFields[field] {
			return errs.Immutable("store.Update", fmt.Errorf("field %q is immutable", field))
		}
	}

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		el, err := getTx(ctx, conn, id)
		if err != nil {
			return err
		}

		if err := applyPatch(el, patch); err != nil {
			return errs.Validation("store.Update", errs.CodeInvalidInput, err)
		}
		el.UpdatedAt = time.Now().UTC()
		if err := el.Validate(); err != nil {
			return errs.Validation("store.Update", errs.CodeInvalidInput, err)
		}

		tagsJSON, err := json.Marshal(el.Tags)
		if err != nil {
			return errs.Validation("store.Update", errs.CodeInvalidTag, err)
		}
		taskStatus, taskPriority, taskComplexity, taskAssignee := extractTaskFields(el)

		hash, err := idgen.ContentHash(el)
		if err != nil {
			return errs.Validation("store.Update", errs.CodeInvalidMetadata, err)
		}

		_, err = conn.ExecContext(ctx, `
			UPDATE elements SET
				updated_at = ?, tags = ?, metadata = ?, content_hash = ?, deleted_at = ?,
				task_status = ?, task_priority = ?, task_complexity = ?, task_assignee = ?
			WHERE id = ?
		`, el.UpdatedAt, string(tagsJSON), string(el.Metadata), hash, nullTime(el.DeletedAt),
			taskStatus, taskPriority, taskComplexity, taskAssignee, id)
		if err != nil {
			return errs.Storage("store.Update", errs.CodeDatabaseError, err)
		}

		return markDirtyTx(ctx, conn, id, hash)
	})
}

// Get retrieves an element by id, returning errs.KindNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*types.Element, error) {
	row := s.db.QueryRowContext(ctx, elementSelectColumns+` WHERE id = ?`, id)
	el, err := scanElement(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("store.Get", fmt.Errorf("element %s not found", id))
		}
		return nil, errs.Storage("store.Get", errs.CodeDatabaseError, err)
	}
	return el, nil
}

func getTx(ctx context.Context, conn *sql.Conn, id string) (*types.Element, error) {
	row := conn.QueryRowContext(ctx, elementSelectColumns+` WHERE id = ?`, id)
	el, err := scanElement(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("store.Update", fmt.Errorf("element %s not found", id))
		}
		return nil, errs.Storage("store.Update", errs.CodeDatabaseError, err)
	}
	return el, nil
}

// ListFilter narrows ListPaginated beyond the ready-work-specific
// types.WorkFilter, covering every element type rather than just tasks.
type ListFilter struct {
	Type         types.ElementType
	IncludeTombs bool
	Cursor       string
	Limit        int
}

// ListPaginated returns up to filter.Limit elements ordered by id,
// starting strictly after filter.Cursor, the teacher's keyset-pagination
// style (never OFFSET, which drifts under concurrent writes).
func (s *Store) ListPaginated(ctx context.Context, filter ListFilter) ([]*types.Element, string, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := elementSelectColumns + ` WHERE id > ?`
	args := []interface{}{filter.Cursor}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.IncludeTombs {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", errs.Storage("store.ListPaginated", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Element
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, "", errs.Storage("store.ListPaginated", errs.CodeDatabaseError, err)
		}
		out = append(out, el)
	}
	if err := rows.Err(); err != nil {
		return nil, "", errs.Storage("store.ListPaginated", errs.CodeDatabaseError, err)
	}

	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func applyPatch(el *types.Element, patch map[string]interface{}) error {
	for key, value := range patch {
		switch key {
		case "tags":
			tags, ok := value.([]string)
			if !ok {
				return fmt.Errorf("tags patch must be []string")
			}
			el.Tags = tags
		case "metadata":
			raw, ok := value.(json.RawMessage)
			if !ok {
				b, err := json.Marshal(value)
				if err != nil {
					return fmt.Errorf("metadata must be JSON-marshalable: %w", err)
				}
				raw = b
			}
			el.Metadata = raw
		case "deletedAt":
			if value == nil {
				el.DeletedAt = nil
				continue
			}
			t, ok := value.(time.Time)
			if !ok {
				return fmt.Errorf("deletedAt patch must be time.Time")
			}
			el.DeletedAt = &t
		default:
			return fmt.Errorf("unknown or non-patchable field %q", key)
		}
	}
	return nil
}

func extractTaskFields(el *types.Element) (status sql.NullString, priority, complexity sql.NullInt64, assignee sql.NullString) {
	if el.Type != types.ElementTask {
		return
	}
	var s string
	if ok, _ := el.MetadataValue("status", &s); ok {
		status = sql.NullString{String: s, Valid: true}
	}
	var p int
	if ok, _ := el.MetadataValue("priority", &p); ok {
		priority = sql.NullInt64{Int64: int64(p), Valid: true}
	}
	var c int
	if ok, _ := el.MetadataValue("complexity", &c); ok {
		complexity = sql.NullInt64{Int64: int64(c), Valid: true}
	}
	var a string
	if ok, _ := el.MetadataValue("assignee", &a); ok && a != "" {
		assignee = sql.NullString{String: a, Valid: true}
	}
	return
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const elementSelectColumns = `
	SELECT id, type, created_at, updated_at, created_by, tags, metadata, content_hash, deleted_at
	FROM elements`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanElement(row scanner) (*types.Element, error) {
	var el types.Element
	var elType, tagsJSON string
	var contentHash string
	var deletedAt sql.NullTime

	if err := row.Scan(&el.ID, &elType, &el.CreatedAt, &el.UpdatedAt, &el.CreatedBy, &tagsJSON, &el.Metadata, &contentHash, &deletedAt); err != nil {
		return nil, err
	}
	el.Type = types.ElementType(elType)
	if err := json.Unmarshal([]byte(tagsJSON), &el.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		el.DeletedAt = &t
	}
	_ = contentHash // persisted for dirty-tracking comparisons; not part of Element itself
	return &el, nil
}
