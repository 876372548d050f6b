package shift

import (
	"github.com/shopspring/decimal"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// SHIFT TOTALS - Workflow state machine
// =============================================================================

// Totals are the derived figures stored on a record.
type Totals struct {
	BeginningBox  decimal.NullDecimal `json:"beginning_box"`
	EndingBox     decimal.NullDecimal `json:"ending_box"`
	BoxDelta      decimal.NullDecimal `json:"box_delta"`
	DepositTotal  decimal.Decimal     `json:"deposit_total"`
	BingoTotal    decimal.Decimal     `json:"bingo_total"`
	BingoActual   decimal.Decimal     `json:"bingo_actual"`
	DepositActual decimal.Decimal     `json:"deposit_actual"`
	PrevShiftID   string              `json:"prev_shift_id,omitempty"`
}

const opTotals = "compute_totals"

// ComputeTotals derives deposit and bingo figures for one shift. prev is
// the linked previous shift (required for RECUPERATION_BOX_RETURN,
// ignored otherwise). Explicit bingo_actual / deposit_actual inputs take
// precedence over computed values.
//
// The ending box cap is checked before anything else, so an ending box
// above 4000 is always the reported error.
func ComputeTotals(in RecordInput, prev *Record) (Totals, error) {
	if in.EndingBox.Valid && in.EndingBox.Decimal.GreaterThan(MaxBox) {
		return Totals{}, generic.Precondition(opTotals, "ending box cannot exceed 4000",
			"ending_box", in.EndingBox.Decimal.String())
	}
	if err := checkInputs(in); err != nil {
		return Totals{}, err
	}

	t := Totals{BeginningBox: in.BeginningBox, EndingBox: in.EndingBox}
	pulltabs := in.PulltabsTotal

	switch in.WorkflowType {
	case WorkflowNormal:
		if !in.DepositTotal.Valid {
			return Totals{}, generic.Precondition(opTotals, "deposit_total is required for NORMAL shifts")
		}
		t.DepositTotal = in.DepositTotal.Decimal
		t.BingoTotal = t.DepositTotal.Sub(pulltabs)

	case WorkflowNegativeBox:
		if !in.BeginningBox.Valid || !in.EndingBox.Valid {
			return Totals{}, generic.Precondition(opTotals,
				"beginning_box and ending_box are required for NEGATIVE_BINGO_BOX shifts")
		}
		// No bingo cash reaches the bank; the box shrinkage is the bingo result.
		t.DepositTotal = pulltabs
		t.BingoTotal = in.EndingBox.Decimal.Sub(in.BeginningBox.Decimal)

	case WorkflowRecuperation:
		if prev == nil {
			return Totals{}, generic.Precondition(opTotals,
				"RECUPERATION_BOX_RETURN shifts require a previous shift", "prev_shift_id", in.PrevShiftID)
		}
		t.PrevShiftID = prev.ID
		if !t.BeginningBox.Valid {
			if !prev.EndingBox.Valid {
				return Totals{}, generic.Precondition(opTotals,
					"beginning_box is missing and the previous shift has no ending_box", "prev_shift_id", prev.ID)
			}
			t.BeginningBox = prev.EndingBox
		}
		switch {
		case in.BingoActual.Valid:
			t.BingoTotal = in.BingoActual.Decimal
			t.DepositTotal = pulltabs.Add(in.BingoActual.Decimal)
		case in.DepositTotal.Valid:
			t.DepositTotal = in.DepositTotal.Decimal
			t.BingoTotal = t.DepositTotal.Sub(pulltabs)
		default:
			return Totals{}, generic.Precondition(opTotals,
				"bingo_actual or deposit_total is required for RECUPERATION_BOX_RETURN shifts")
		}

	default:
		return Totals{}, generic.Precondition(opTotals, "unknown workflow_type", "workflow_type", string(in.WorkflowType))
	}

	delta := decimal.Zero
	if t.BeginningBox.Valid && t.EndingBox.Valid {
		delta = t.EndingBox.Decimal.Sub(t.BeginningBox.Decimal)
		t.BoxDelta = decimal.NullDecimal{Decimal: delta, Valid: true}
	}
	bingoDeposited := t.DepositTotal.Sub(pulltabs)
	t.BingoActual = bingoDeposited.Add(delta)
	t.DepositActual = t.DepositTotal.Add(delta)

	if in.BingoActual.Valid {
		t.BingoActual = in.BingoActual.Decimal
	}
	if in.DepositActual.Valid {
		t.DepositActual = in.DepositActual.Decimal
	}
	return t, nil
}

func checkInputs(in RecordInput) error {
	if !generic.IsValidDate(in.Date) {
		return generic.Precondition(opTotals, "date must be YYYY-MM-DD", "date", in.Date)
	}
	if !in.Shift.Valid() {
		return generic.Precondition(opTotals, "shift must be AM or PM", "shift", string(in.Shift))
	}
	if in.PulltabsTotal.IsNegative() {
		return generic.Precondition(opTotals, "pulltabs_total must not be negative")
	}
	if in.DepositTotal.Valid && in.DepositTotal.Decimal.IsNegative() {
		return generic.Precondition(opTotals, "deposit_total must not be negative")
	}
	for _, box := range []struct {
		name  string
		value decimal.NullDecimal
	}{{"beginning_box", in.BeginningBox}, {"ending_box", in.EndingBox}} {
		if !box.value.Valid {
			continue
		}
		if box.value.Decimal.IsNegative() || box.value.Decimal.GreaterThan(MaxBox) {
			return generic.Precondition(opTotals, box.name+" must be between 0 and 4000", box.name, box.value.Decimal.String())
		}
	}
	if in.DepositTotal.Valid && in.DepositBankTotal.Valid && !in.DepositTotal.Decimal.Equal(in.DepositBankTotal.Decimal) {
		return generic.Precondition(opTotals, "deposit_bank_total must match deposit_total",
			"deposit_total", in.DepositTotal.Decimal.String(), "deposit_bank_total", in.DepositBankTotal.Decimal.String())
	}
	return nil
}
