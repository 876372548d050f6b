package shift_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/shift"
)

func TestCashTotal(t *testing.T) {
	d := shift.Denominations{
		Hundreds: 1, Fifties: 1, Twenties: 2, Tens: 1, Fives: 1, Ones: 3,
		Quarters: 3, Dimes: 2, Nickels: 1, Pennies: 4,
	}

	assertDec(t, "209.04", shift.CashTotal(d))
	assertDec(t, "0", shift.CashTotal(shift.Denominations{}))
}

func TestReconcile_BalancedWithinTolerance(t *testing.T) {
	// GIVEN: $100 bill, two quarters, one $25 check, $125 of sales
	cash := shift.CashTotal(shift.Denominations{Hundreds: 1, Quarters: 2})
	checks := shift.ChecksTotal([]shift.CheckEntry{{Amount: dec("25")}})

	rec := shift.Reconcile(cash, checks, dec("100").Add(dec("25")), shift.DefaultTolerance)

	assertDec(t, "100.50", rec.CashTotal)
	assertDec(t, "25", rec.ChecksTotal)
	assertDec(t, "125", rec.SalesTotal)
	assertDec(t, "0.50", rec.Variance)
	assert.True(t, rec.IsBalanced)
}

func TestReconcile_ToleranceBoundary(t *testing.T) {
	assert.True(t, shift.Reconcile(dec("101"), dec("0"), dec("100"), shift.DefaultTolerance).IsBalanced)
	assert.False(t, shift.Reconcile(dec("101.01"), dec("0"), dec("100"), shift.DefaultTolerance).IsBalanced)
	assert.False(t, shift.Reconcile(dec("98.99"), dec("0"), dec("100"), shift.DefaultTolerance).IsBalanced)
}

func submission() shift.Submission {
	return shift.Submission{
		Date:          "2025-03-14",
		Shift:         shift.AM,
		Headcount:     42,
		SalesBingo:    dec("100"),
		SalesPulltabs: dec("25"),
		Denominations: shift.Denominations{Hundreds: 1, Quarters: 2},
		CheckLogs: []shift.CheckEntry{
			{PlayerName: "Pat Smith", CheckNumber: "1001", Amount: dec("25"), StampedOnBack: true, PhoneDLWritten: true},
		},
	}
}

func TestEvaluateSubmission_Submitted(t *testing.T) {
	eval, err := shift.EvaluateSubmission(submission(), nil, shift.DefaultTolerance)

	require.NoError(t, err)
	assert.Equal(t, shift.StatusSubmitted, eval.Status)
	assertDec(t, "0.50", eval.Variance)
}

func TestEvaluateSubmission_UnbalancedNeedsNote(t *testing.T) {
	// GIVEN: sales exceed counted money by $19.50
	sub := submission()
	sub.SalesBingo = dec("120")

	// WHEN: no note is given
	_, err := shift.EvaluateSubmission(sub, nil, shift.DefaultTolerance)

	// THEN: rejected with the variance
	var ierr *generic.IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, shift.KindUnbalancedVariance, ierr.Kind)
	assert.Contains(t, ierr.Message, "$19.50")

	// WHEN: a note is given, it is accepted but flagged
	sub.VarianceNote = "Miscounted change bag"
	eval, err := shift.EvaluateSubmission(sub, nil, shift.DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusFlagged, eval.Status)
}

func TestEvaluateSubmission_UnverifiedCheck(t *testing.T) {
	sub := submission()
	sub.CheckLogs[0].PhoneDLWritten = false

	_, err := shift.EvaluateSubmission(sub, nil, shift.DefaultTolerance)

	var ierr *generic.IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, shift.KindUnverifiedCheck, ierr.Kind)
}

func TestEvaluateSubmission_RestrictedPlayer(t *testing.T) {
	restricted := []shift.RestrictedPlayer{
		{ID: "r-1", Name: "Pat Smith", Notes: "Returned checks", Active: false},
		{ID: "r-2", Name: "  pat smith ", Notes: "Bounced twice", Active: true},
	}

	_, err := shift.EvaluateSubmission(submission(), restricted, shift.DefaultTolerance)

	var ierr *generic.IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, shift.KindRestrictedPlayer, ierr.Kind)
	entity := ierr.Entity.(map[string]any)
	assert.Equal(t, "Pat Smith", entity["player_name"])
	assert.Equal(t, "Bounced twice", entity["reason"])
}

func TestEvaluateSubmission_ShapeIssues(t *testing.T) {
	sub := submission()
	sub.SalesBingo = dec("-40")
	sub.SalesPulltabs = dec("-1")
	sub.CheckLogs[0].Amount = dec("0")

	_, err := shift.EvaluateSubmission(sub, nil, shift.DefaultTolerance)

	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	paths := make([]string, len(verr.Issues))
	for i, issue := range verr.Issues {
		paths[i] = issue.Path.String()
	}
	assert.Equal(t, []string{"sales_pulltabs", "negative_bingo_reason_code", "check_logs[0].amount"}, paths)

	// A reason code makes negative bingo sales acceptable.
	sub = submission()
	sub.SalesBingo = dec("-40")
	sub.NegativeBingoReasonCode = shift.ReasonJackpotHit
	sub.VarianceNote = "Jackpot paid from drawer"
	eval, err := shift.EvaluateSubmission(sub, nil, shift.DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusFlagged, eval.Status)
}
