package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// VERSIONS
// =============================================================================

var versionColumns = []string{
	"id", "kind", "status", "week_start", "content", "comment", "source_version_id",
	"created_by", "created_at", "published_by", "published_at",
}

func (q *queries) FindVersionByStatus(ctx context.Context, kind generic.DocumentKind, status generic.VersionStatus) (*generic.Version, error) {
	list, err := q.selectVersions(ctx, q.sb.Select(versionColumns...).
		From("versions").
		Where(sq.Eq{"kind": string(kind), "status": string(status)}).
		OrderBy("seq DESC").
		Limit(1))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	v := &list[0]
	if v.Slots, err = q.loadSlots(ctx, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (q *queries) GetVersion(ctx context.Context, id string) (*generic.Version, error) {
	list, err := q.selectVersions(ctx, q.sb.Select(versionColumns...).From("versions").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, generic.ErrNotFound
	}
	v := &list[0]
	if v.Slots, err = q.loadSlots(ctx, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

func (q *queries) ListVersions(ctx context.Context, kind generic.DocumentKind) ([]generic.Version, error) {
	return q.selectVersions(ctx, q.sb.Select(versionColumns...).
		From("versions").
		Where(sq.Eq{"kind": string(kind)}).
		OrderBy("seq DESC"))
}

func (q *queries) CreateVersion(ctx context.Context, v *generic.Version) error {
	var publishedAt sql.NullString
	if v.PublishedAt != nil {
		publishedAt = nullString(formatTime(*v.PublishedAt))
	}
	query, args, err := q.sb.Insert("versions").
		Columns(append([]string{"seq"}, versionColumns...)...).
		Values(
			sq.Expr("(SELECT COALESCE(MAX(seq), 0) + 1 FROM versions)"),
			v.ID, string(v.Kind), string(v.Status), nullString(v.WeekStart), nullString(string(v.Content)),
			nullString(v.Comment), nullString(v.SourceVersionID),
			nullString(v.CreatedBy), formatTime(v.CreatedAt), nullString(v.PublishedBy), publishedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert version: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert version", err)
	}
	return q.insertSlots(ctx, v.ID, v.Slots)
}

func (q *queries) UpdateVersion(ctx context.Context, v *generic.Version) error {
	query, args, err := q.sb.Update("versions").
		Set("week_start", nullString(v.WeekStart)).
		Set("content", nullString(string(v.Content))).
		Set("comment", nullString(v.Comment)).
		Where(sq.Eq{"id": v.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update version: %w", err)
	}
	if err := q.execOne(ctx, "update version", query, args); err != nil {
		return err
	}

	del, delArgs, err := q.sb.Delete("version_slots").Where(sq.Eq{"version_id": v.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete slots: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, del, delArgs...); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return q.insertSlots(ctx, v.ID, v.Slots)
}

func (q *queries) SetVersionStatus(ctx context.Context, id string, status generic.VersionStatus) error {
	query, args, err := q.sb.Update("versions").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set status: %w", err)
	}
	return q.execOne(ctx, "set version status", query, args)
}

func (q *queries) selectVersions(ctx context.Context, b sq.SelectBuilder) ([]generic.Version, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select versions: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select versions: %w", err)
	}
	defer rows.Close()

	var out []generic.Version
	for rows.Next() {
		var v generic.Version
		var kind, status, createdAt string
		var weekStart, content, comment, source, createdBy, publishedBy, publishedAt sql.NullString
		if err := rows.Scan(&v.ID, &kind, &status, &weekStart, &content, &comment, &source,
			&createdBy, &createdAt, &publishedBy, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Kind = generic.DocumentKind(kind)
		v.Status = generic.VersionStatus(status)
		v.WeekStart = weekStart.String
		if content.Valid {
			v.Content = json.RawMessage(content.String)
		}
		v.Comment = comment.String
		v.SourceVersionID = source.String
		v.CreatedBy = createdBy.String
		v.CreatedAt = parseTime(createdAt)
		v.PublishedBy = publishedBy.String
		if publishedAt.Valid {
			t := parseTime(publishedAt.String)
			v.PublishedAt = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// =============================================================================
// SLOTS
// =============================================================================

func (q *queries) insertSlots(ctx context.Context, versionID string, slots []generic.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	b := q.sb.Insert("version_slots").Columns(
		"id", "version_id", "position", "day_of_week", "start_time", "duration_minutes", "program_slug", "overrides")
	for i, s := range slots {
		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		b = b.Values(id, versionID, i, s.DayOfWeek, s.StartTime, s.DurationMinutes, s.ProgramSlug, nullString(string(s.Overrides)))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build insert slots: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert slots", err)
	}
	return nil
}

func (q *queries) loadSlots(ctx context.Context, versionID string) ([]generic.Slot, error) {
	query, args, err := q.sb.Select("id", "day_of_week", "start_time", "duration_minutes", "program_slug", "overrides").
		From("version_slots").
		Where(sq.Eq{"version_id": versionID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select slots: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select slots: %w", err)
	}
	defer rows.Close()

	var out []generic.Slot
	for rows.Next() {
		var s generic.Slot
		var overrides sql.NullString
		if err := rows.Scan(&s.ID, &s.DayOfWeek, &s.StartTime, &s.DurationMinutes, &s.ProgramSlug, &overrides); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if overrides.Valid {
			s.Overrides = json.RawMessage(overrides.String)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// PROGRAMS
// =============================================================================

// ListPrograms returns known programs ordered by slug.
func (q *queries) ListPrograms(ctx context.Context) ([]generic.Program, error) {
	query, args, err := q.sb.Select("slug", "name").From("programs").OrderBy("slug").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list programs: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []generic.Program
	for rows.Next() {
		var p generic.Program
		if err := rows.Scan(&p.Slug, &p.Name); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProgram inserts or renames a program.
func (q *queries) SaveProgram(ctx context.Context, p generic.Program) error {
	query, args, err := q.sb.Insert("programs").
		Columns("slug", "name").
		Values(p.Slug, p.Name).
		Suffix("ON CONFLICT (slug) DO UPDATE SET name = excluded.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save program: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save program %s: %w", p.Slug, err)
	}
	return nil
}

// execOne runs a statement that must touch exactly one row.
func (q *queries) execOne(ctx context.Context, op, query string, args []any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return writeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return generic.ErrNotFound
	}
	return nil
}
