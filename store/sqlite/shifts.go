package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/shift"
)

// =============================================================================
// SHIFT RECORDS
// =============================================================================

var shiftColumns = []string{
	"id", "date", "shift", "workflow_type", "status",
	"pulltabs_total", "deposit_total", "bingo_total",
	"beginning_box", "ending_box", "bingo_actual", "deposit_actual",
	"players", "notes", "prev_shift_id", "sales_json", "variance_note", "negative_bingo_reason_code",
	"created_by", "created_at", "updated_at", "is_deleted",
}

func (q *queries) CreateShift(ctx context.Context, r shift.Record) error {
	values, err := shiftValues(r)
	if err != nil {
		return err
	}
	query, args, err := q.sb.Insert("shift_records").Columns(shiftColumns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert shift: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert shift", err)
	}
	return nil
}

func (q *queries) UpdateShift(ctx context.Context, r shift.Record) error {
	values, err := shiftValues(r)
	if err != nil {
		return err
	}
	b := q.sb.Update("shift_records")
	// id and created_* never change.
	for i, col := range shiftColumns {
		switch col {
		case "id", "created_by", "created_at":
			continue
		}
		b = b.Set(col, values[i])
	}
	query, args, err := b.Where(sq.Eq{"id": r.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update shift: %w", err)
	}
	return q.execOne(ctx, "update shift", query, args)
}

func (q *queries) GetShift(ctx context.Context, id string) (*shift.Record, error) {
	list, err := q.selectShifts(ctx, q.sb.Select(shiftColumns...).From("shift_records").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, generic.ErrNotFound
	}
	return &list[0], nil
}

func (q *queries) ListShifts(ctx context.Context, f shift.Filter) ([]shift.Record, error) {
	b := q.sb.Select(shiftColumns...).From("shift_records")
	if !f.IncludeDeleted {
		b = b.Where(sq.Eq{"is_deleted": 0})
	}
	if f.From != "" {
		b = b.Where(sq.GtOrEq{"date": f.From})
	}
	if f.To != "" {
		b = b.Where(sq.LtOrEq{"date": f.To})
	}
	if f.Shift != "" {
		b = b.Where(sq.Eq{"shift": string(f.Shift)})
	}
	if f.Workflow != "" {
		b = b.Where(sq.Eq{"workflow_type": string(f.Workflow)})
	}
	return q.selectShifts(ctx, b.OrderBy("date", "shift", "id"))
}

func (q *queries) FindPreviousShift(ctx context.Context, date string, designation shift.Designation) (*shift.Record, error) {
	before := sq.Or{sq.Lt{"date": date}}
	if designation == shift.PM {
		before = append(before, sq.Eq{"date": date, "shift": string(shift.AM)})
	}
	list, err := q.selectShifts(ctx, q.sb.Select(shiftColumns...).
		From("shift_records").
		Where(sq.Eq{"is_deleted": 0}).
		Where(before).
		OrderBy("date DESC", "shift DESC", "id DESC").
		Limit(1))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// SaveSubmission writes the record, cash count and checks in one
// transaction.
func (s *Store) SaveSubmission(ctx context.Context, r shift.Record, cash shift.CashCount, checks []shift.CheckEntry) error {
	return s.withTx(ctx, func(q *queries) error {
		if err := q.CreateShift(ctx, r); err != nil {
			return err
		}
		if err := q.insertCashCount(ctx, r.ID, cash); err != nil {
			return err
		}
		return q.insertChecks(ctx, r.ID, checks)
	})
}

func (q *queries) insertCashCount(ctx context.Context, shiftID string, c shift.CashCount) error {
	d := c.Denominations
	query, args, err := q.sb.Insert("cash_counts").
		Columns("shift_id", "denom_100_count", "denom_50_count", "denom_20_count", "denom_10_count",
			"denom_5_count", "denom_1_count", "denom_quarters", "denom_dimes", "denom_nickels", "denom_pennies",
			"total_value").
		Values(shiftID, d.Hundreds, d.Fifties, d.Twenties, d.Tens, d.Fives, d.Ones,
			d.Quarters, d.Dimes, d.Nickels, d.Pennies, c.TotalValue.String()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert cash count: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert cash count", err)
	}
	return nil
}

func (q *queries) insertChecks(ctx context.Context, shiftID string, checks []shift.CheckEntry) error {
	if len(checks) == 0 {
		return nil
	}
	b := q.sb.Insert("check_logs").Columns(
		"shift_id", "position", "player_name", "check_number", "amount", "stamped_on_back", "phone_dl_written")
	for i, c := range checks {
		b = b.Values(shiftID, i, c.PlayerName, c.CheckNumber, c.Amount.String(), boolInt(c.StampedOnBack), boolInt(c.PhoneDLWritten))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build insert checks: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert checks", err)
	}
	return nil
}

// CashCount loads the stored count of a submitted shift.
func (q *queries) CashCount(ctx context.Context, shiftID string) (*shift.CashCount, error) {
	query, args, err := q.sb.Select("denom_100_count", "denom_50_count", "denom_20_count", "denom_10_count",
		"denom_5_count", "denom_1_count", "denom_quarters", "denom_dimes", "denom_nickels", "denom_pennies",
		"total_value").
		From("cash_counts").
		Where(sq.Eq{"shift_id": shiftID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select cash count: %w", err)
	}
	c := shift.CashCount{ShiftID: shiftID}
	d := &c.Denominations
	err = q.db.QueryRowContext(ctx, query, args...).Scan(&d.Hundreds, &d.Fifties, &d.Twenties, &d.Tens,
		&d.Fives, &d.Ones, &d.Quarters, &d.Dimes, &d.Nickels, &d.Pennies, &c.TotalValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cash count: %w", err)
	}
	return &c, nil
}

// Checks loads the check log of a submitted shift in entry order.
func (q *queries) Checks(ctx context.Context, shiftID string) ([]shift.CheckEntry, error) {
	query, args, err := q.sb.Select("player_name", "check_number", "amount", "stamped_on_back", "phone_dl_written").
		From("check_logs").
		Where(sq.Eq{"shift_id": shiftID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select checks: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select checks: %w", err)
	}
	defer rows.Close()

	var out []shift.CheckEntry
	for rows.Next() {
		var c shift.CheckEntry
		var stamped, phone int
		if err := rows.Scan(&c.PlayerName, &c.CheckNumber, &c.Amount, &stamped, &phone); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		c.StampedOnBack = stamped != 0
		c.PhoneDLWritten = phone != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) selectShifts(ctx context.Context, b sq.SelectBuilder) ([]shift.Record, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select shifts: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select shifts: %w", err)
	}
	defer rows.Close()

	var out []shift.Record
	for rows.Next() {
		var r shift.Record
		var designation, workflow, status, createdAt, updatedAt string
		var players sql.NullInt64
		var notes, prev, sales, varianceNote, reason, createdBy sql.NullString
		var deleted int
		if err := rows.Scan(&r.ID, &r.Date, &designation, &workflow, &status,
			&r.PulltabsTotal, &r.DepositTotal, &r.BingoTotal,
			&r.BeginningBox, &r.EndingBox, &r.BingoActual, &r.DepositActual,
			&players, &notes, &prev, &sales, &varianceNote, &reason,
			&createdBy, &createdAt, &updatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		r.Shift = shift.Designation(designation)
		r.WorkflowType = shift.Workflow(workflow)
		r.Status = shift.Status(status)
		if players.Valid {
			n := int(players.Int64)
			r.Players = &n
		}
		r.Notes = notes.String
		r.PrevShiftID = prev.String
		if sales.Valid {
			r.Sales = &shift.SalesSummary{}
			if err := json.Unmarshal([]byte(sales.String), r.Sales); err != nil {
				return nil, fmt.Errorf("decode sales of shift %s: %w", r.ID, err)
			}
		}
		r.VarianceNote = varianceNote.String
		r.NegativeBingoReasonCode = reason.String
		r.CreatedBy = createdBy.String
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		r.IsDeleted = deleted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// shiftValues returns r's column values in shiftColumns order.
func shiftValues(r shift.Record) ([]any, error) {
	var sales sql.NullString
	if r.Sales != nil {
		raw, err := json.Marshal(r.Sales)
		if err != nil {
			return nil, fmt.Errorf("encode sales: %w", err)
		}
		sales = nullString(string(raw))
	}
	var players sql.NullInt64
	if r.Players != nil {
		players = sql.NullInt64{Int64: int64(*r.Players), Valid: true}
	}
	return []any{
		r.ID, r.Date, string(r.Shift), string(r.WorkflowType), string(r.Status),
		r.PulltabsTotal.String(), r.DepositTotal.String(), r.BingoTotal.String(),
		nullDecimal(r.BeginningBox), nullDecimal(r.EndingBox), nullDecimal(r.BingoActual), nullDecimal(r.DepositActual),
		players, nullString(r.Notes), nullString(r.PrevShiftID), sales,
		nullString(r.VarianceNote), nullString(r.NegativeBingoReasonCode),
		nullString(r.CreatedBy), formatTime(r.CreatedAt), formatTime(r.UpdatedAt), boolInt(r.IsDeleted),
	}, nil
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

// =============================================================================
// RESTRICTED PLAYERS
// =============================================================================

func (q *queries) ListRestrictedPlayers(ctx context.Context, activeOnly bool) ([]shift.RestrictedPlayer, error) {
	b := q.sb.Select("id", "name", "notes", "active", "created_at").From("restricted_players")
	if activeOnly {
		b = b.Where(sq.Eq{"active": 1})
	}
	query, args, err := b.OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list restricted: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list restricted: %w", err)
	}
	defer rows.Close()

	var out []shift.RestrictedPlayer
	for rows.Next() {
		var p shift.RestrictedPlayer
		var notes sql.NullString
		var active int
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &notes, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan restricted: %w", err)
		}
		p.Notes = notes.String
		p.Active = active != 0
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) CreateRestrictedPlayer(ctx context.Context, p shift.RestrictedPlayer) error {
	query, args, err := q.sb.Insert("restricted_players").
		Columns("id", "name", "notes", "active", "created_at").
		Values(p.ID, p.Name, nullString(p.Notes), boolInt(p.Active), formatTime(p.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert restricted: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return writeErr("insert restricted", err)
	}
	return nil
}
