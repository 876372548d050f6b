package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// SETTINGS
// =============================================================================

func (q *queries) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	query, args, err := q.sb.Select("value").From("settings").Where(sq.Eq{"setting_key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get setting: %w", err)
	}
	var value string
	err = q.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

func (q *queries) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	query, args, err := q.sb.Insert("settings").
		Columns("setting_key", "value", "updated_at").
		Values(key, string(value), formatTime(time.Now())).
		Suffix("ON CONFLICT (setting_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set setting: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (q *queries) DeleteSetting(ctx context.Context, key string) error {
	query, args, err := q.sb.Delete("settings").Where(sq.Eq{"setting_key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete setting: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func (q *queries) ListSettings(ctx context.Context, prefix string) ([]generic.Setting, error) {
	query, args, err := q.sb.Select("setting_key", "value", "updated_at").
		From("settings").
		Where(sq.Like{"setting_key": prefix + "%"}).
		OrderBy("setting_key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list settings: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []generic.Setting
	for rows.Next() {
		var st generic.Setting
		var value, updated string
		if err := rows.Scan(&st.Key, &value, &updated); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		// LIKE treats _ as a wildcard and ignores case in SQLite.
		if !strings.HasPrefix(st.Key, prefix) {
			continue
		}
		st.Value = json.RawMessage(value)
		st.UpdatedAt = parseTime(updated)
		out = append(out, st)
	}
	return out, rows.Err()
}
