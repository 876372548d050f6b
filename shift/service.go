/*
service.go - Shift record lifecycle

PURPOSE:
  Wraps the pure totals and reconciliation functions with persistence:
  resolve the previous shift, compute, stamp audit fields, store. Records
  are never hard-deleted.

FLOWS:
  Create / Update   RecordInput -> ComputeTotals -> Store
  Submit (MIC)      Submission  -> EvaluateSubmission -> record + cash count
                    + check log rows in one store transaction
  Delete            sets is_deleted

SEE ALSO:
  - totals.go, reconcile.go: The math
  - store/sqlite/shifts.go: SQL persistence
*/
package shift

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
)

// Service manages shift records.
type Service struct {
	store     Store
	log       zerolog.Logger
	tolerance decimal.Decimal
	newID     func() string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTolerance sets the reconciliation tolerance.
func WithTolerance(t decimal.Decimal) Option {
	return func(s *Service) { s.tolerance = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides uuid generation.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a shift service.
func NewService(store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		log:       log.With().Str("component", "shift").Logger(),
		tolerance: DefaultTolerance,
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tolerance returns the configured reconciliation tolerance.
func (s *Service) Tolerance() decimal.Decimal { return s.tolerance }

// ===== RECORDS =====

// Create computes totals for in and stores a new record.
func (s *Service) Create(ctx context.Context, in RecordInput, actor string) (*Record, error) {
	totals, err := s.totals(ctx, in, "")
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r := Record{
		ID:        s.newID(),
		Status:    StatusSubmitted,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(&r, in, totals)
	if err := s.store.CreateShift(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info().Str("shift_id", r.ID).Str("date", r.Date).Str("workflow", string(r.WorkflowType)).Msg("shift created")
	return &r, nil
}

// Update recomputes totals for an existing record.
func (s *Service) Update(ctx context.Context, id string, in RecordInput) (*Record, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.totals(ctx, in, id)
	if err != nil {
		return nil, err
	}
	r := *existing
	apply(&r, in, totals)
	r.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateShift(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info().Str("shift_id", r.ID).Msg("shift updated")
	return &r, nil
}

// Delete soft-deletes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	r.IsDeleted = true
	r.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateShift(ctx, *r); err != nil {
		return err
	}
	s.log.Info().Str("shift_id", id).Msg("shift deleted")
	return nil
}

// Get returns a live record. Deleted records are not found.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	r, err := s.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsDeleted {
		return nil, generic.ErrNotFound
	}
	return r, nil
}

// List returns records matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	if f.From != "" && !generic.IsValidDate(f.From) {
		return nil, generic.Precondition("list_shifts", "from must be YYYY-MM-DD", "from", f.From)
	}
	if f.To != "" && !generic.IsValidDate(f.To) {
		return nil, generic.Precondition("list_shifts", "to must be YYYY-MM-DD", "to", f.To)
	}
	return s.store.ListShifts(ctx, f)
}

// Previous returns the shift that precedes (date, designation), or nil.
func (s *Service) Previous(ctx context.Context, date string, designation Designation) (*Record, error) {
	return s.store.FindPreviousShift(ctx, date, designation)
}

func (s *Service) totals(ctx context.Context, in RecordInput, selfID string) (Totals, error) {
	var prev *Record
	if in.WorkflowType == WorkflowRecuperation {
		var err error
		prev, err = s.resolvePrevious(ctx, in)
		if err != nil {
			return Totals{}, err
		}
		if prev != nil && prev.ID == selfID {
			return Totals{}, generic.Precondition(opTotals, "a shift cannot be its own previous shift", "prev_shift_id", selfID)
		}
	}
	t, err := ComputeTotals(in, prev)
	if err != nil {
		metrics.IncShiftRejected("totals")
		s.log.Warn().Err(err).Str("date", in.Date).Msg("shift totals rejected")
	}
	return t, err
}

func (s *Service) resolvePrevious(ctx context.Context, in RecordInput) (*Record, error) {
	if in.PrevShiftID == "" {
		if !generic.IsValidDate(in.Date) || !in.Shift.Valid() {
			return nil, nil
		}
		return s.store.FindPreviousShift(ctx, in.Date, in.Shift)
	}
	prev, err := s.store.GetShift(ctx, in.PrevShiftID)
	if errors.Is(err, generic.ErrNotFound) {
		return nil, generic.Precondition(opTotals, "previous shift not found", "prev_shift_id", in.PrevShiftID)
	}
	return prev, err
}

func apply(r *Record, in RecordInput, t Totals) {
	r.Date = in.Date
	r.Shift = in.Shift
	r.WorkflowType = in.WorkflowType
	r.PulltabsTotal = in.PulltabsTotal
	r.DepositTotal = t.DepositTotal
	r.BingoTotal = t.BingoTotal
	r.BeginningBox = t.BeginningBox
	r.EndingBox = t.EndingBox
	r.BingoActual = decimal.NullDecimal{Decimal: t.BingoActual, Valid: true}
	r.DepositActual = decimal.NullDecimal{Decimal: t.DepositActual, Valid: true}
	r.Players = in.Players
	r.Notes = in.Notes
	r.PrevShiftID = t.PrevShiftID
}

// ===== MIC SUBMISSION =====

// Submit evaluates and stores a MIC shift submission.
func (s *Service) Submit(ctx context.Context, sub Submission, actor string) (*Record, error) {
	restricted, err := s.store.ListRestrictedPlayers(ctx, true)
	if err != nil {
		return nil, err
	}
	eval, err := EvaluateSubmission(sub, restricted, s.tolerance)
	if err != nil {
		var ierr *generic.IntegrityError
		reason := "validation"
		if errors.As(err, &ierr) {
			reason = ierr.Kind
		}
		metrics.IncShiftRejected(reason)
		s.log.Warn().Err(err).Str("date", sub.Date).Str("reason", reason).Msg("shift submission rejected")
		return nil, err
	}
	if sub.EndingBox.Valid && sub.EndingBox.Decimal.GreaterThan(MaxBox) {
		metrics.IncShiftRejected("box_limit")
		return nil, generic.Precondition("submit_shift", "ending box cannot exceed 4000", "ending_box", sub.EndingBox.Decimal.String())
	}

	// The MIC form reports its own totals and box counts, so they are stored
	// as submitted. ComputeTotals and the previous-shift lookup only apply
	// to back-office records written through Create and Update.
	workflow := sub.WorkflowType
	if workflow == "" {
		workflow = WorkflowNormal
	}
	headcount := sub.Headcount
	now := s.now().UTC()
	r := Record{
		ID:            s.newID(),
		Date:          sub.Date,
		Shift:         sub.Shift,
		WorkflowType:  workflow,
		Status:        eval.Status,
		PulltabsTotal: sub.SalesPulltabs,
		DepositTotal:  eval.SalesTotal,
		BingoTotal:    sub.SalesBingo,
		BeginningBox:  sub.BeginningBox,
		EndingBox:     sub.EndingBox,
		BingoActual:   sub.BingoActual,
		DepositActual: sub.DepositActual,
		Players:       &headcount,
		Notes:         sub.Notes,
		Sales: &SalesSummary{
			SalesBingo:    sub.SalesBingo,
			SalesPulltabs: sub.SalesPulltabs,
			SalesTotal:    eval.SalesTotal,
			CashTotal:     eval.CashTotal,
			ChecksTotal:   eval.ChecksTotal,
			Variance:      eval.Variance,
		},
		VarianceNote:            sub.VarianceNote,
		NegativeBingoReasonCode: sub.NegativeBingoReasonCode,
		CreatedBy:               actor,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	cash := CashCount{ShiftID: r.ID, Denominations: sub.Denominations, TotalValue: eval.CashTotal}

	if err := s.store.SaveSubmission(ctx, r, cash, sub.CheckLogs); err != nil {
		s.log.Error().Err(err).Str("shift_id", r.ID).Msg("shift submission not saved")
		return nil, err
	}
	metrics.IncShiftSubmission(string(r.Status))
	s.log.Info().
		Str("shift_id", r.ID).
		Str("status", string(r.Status)).
		Str("variance", eval.Variance.StringFixed(2)).
		Msg("shift submitted")
	return &r, nil
}

// ===== RESTRICTED PLAYERS =====

// AddRestrictedPlayer records a new restricted player.
func (s *Service) AddRestrictedPlayer(ctx context.Context, name, notes string) (*RestrictedPlayer, error) {
	if name == "" {
		return nil, generic.Precondition("add_restricted_player", "name is required")
	}
	p := RestrictedPlayer{ID: s.newID(), Name: name, Notes: notes, Active: true, CreatedAt: s.now().UTC()}
	if err := s.store.CreateRestrictedPlayer(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RestrictedPlayers lists restricted players.
func (s *Service) RestrictedPlayers(ctx context.Context, activeOnly bool) ([]RestrictedPlayer, error) {
	return s.store.ListRestrictedPlayers(ctx, activeOnly)
}
