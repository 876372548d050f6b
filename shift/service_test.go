package shift_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/shift"
)

func newService(t *testing.T) (*shift.Service, *shift.MemoryStore) {
	t.Helper()
	store := shift.NewMemoryStore()
	n := 0
	svc := shift.NewService(store, zerolog.New(io.Discard),
		shift.WithIDs(func() string { n++; return fmt.Sprintf("shift-%d", n) }),
		shift.WithClock(func() time.Time { return time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC) }),
	)
	return svc, store
}

func normalInput(date string, designation shift.Designation, endingBox string) shift.RecordInput {
	in := shift.RecordInput{
		Date:          date,
		Shift:         designation,
		WorkflowType:  shift.WorkflowNormal,
		PulltabsTotal: dec("100"),
		DepositTotal:  some("500"),
	}
	if endingBox != "" {
		in.BeginningBox = some("4000")
		in.EndingBox = some(endingBox)
	}
	return in
}

func TestService_CreateUpdateDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// GIVEN: a created NORMAL shift
	rec, err := svc.Create(ctx, normalInput("2025-03-14", shift.AM, ""), "mic-1")
	require.NoError(t, err)
	assert.Equal(t, "shift-1", rec.ID)
	assert.Equal(t, "mic-1", rec.CreatedBy)
	assertDec(t, "400", rec.BingoTotal)

	// WHEN: updated with a bigger deposit
	in := normalInput("2025-03-14", shift.AM, "")
	in.DepositTotal = some("650")
	rec, err = svc.Update(ctx, rec.ID, in)
	require.NoError(t, err)
	assertDec(t, "550", rec.BingoTotal)

	// WHEN: deleted
	require.NoError(t, svc.Delete(ctx, rec.ID))

	// THEN: it is gone from reads and lists but not from storage
	_, err = svc.Get(ctx, rec.ID)
	assert.True(t, generic.IsNotFound(err))
	list, err := svc.List(ctx, shift.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	all, err := svc.List(ctx, shift.Filter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_CreateRejectsBoxOverLimit(t *testing.T) {
	svc, store := newService(t)

	_, err := svc.Create(context.Background(), normalInput("2025-03-14", shift.AM, "4001"), "mic-1")

	assert.True(t, errors.Is(err, generic.ErrPrecondition))
	list, _ := store.ListShifts(context.Background(), shift.Filter{IncludeDeleted: true})
	assert.Empty(t, list)
}

func TestService_FindPrevious(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, normalInput("2025-03-12", shift.PM, "3900"), "mic")
	require.NoError(t, err)
	am, err := svc.Create(ctx, normalInput("2025-03-14", shift.AM, "3800"), "mic")
	require.NoError(t, err)

	// PM looks at the same day's AM first
	prev, err := svc.Previous(ctx, "2025-03-14", shift.PM)
	require.NoError(t, err)
	assert.Equal(t, am.ID, prev.ID)

	// AM looks at earlier days
	prev, err = svc.Previous(ctx, "2025-03-14", shift.AM)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", prev.Date)

	// Deleted shifts are skipped
	require.NoError(t, svc.Delete(ctx, am.ID))
	prev, err = svc.Previous(ctx, "2025-03-14", shift.PM)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", prev.Date)

	prev, err = svc.Previous(ctx, "2025-03-01", shift.AM)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestService_RecuperationResolvesPreviousShift(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// GIVEN: a negative box shift that ended at 3500
	neg := shift.RecordInput{
		Date: "2025-03-13", Shift: shift.PM, WorkflowType: shift.WorkflowNegativeBox,
		PulltabsTotal: dec("200"), BeginningBox: some("4000"), EndingBox: some("3500"),
	}
	first, err := svc.Create(ctx, neg, "mic")
	require.NoError(t, err)

	// WHEN: the next shift returns the box without naming the previous shift
	rec, err := svc.Create(ctx, shift.RecordInput{
		Date: "2025-03-14", Shift: shift.AM, WorkflowType: shift.WorkflowRecuperation,
		PulltabsTotal: dec("100"), DepositTotal: some("700"), EndingBox: some("4000"),
	}, "mic")

	// THEN: the previous shift is found and its ending box inherited
	require.NoError(t, err)
	assert.Equal(t, first.ID, rec.PrevShiftID)
	assertDec(t, "3500", rec.BeginningBox.Decimal)

	// WHEN: an unknown previous shift is named
	_, err = svc.Create(ctx, shift.RecordInput{
		Date: "2025-03-15", Shift: shift.AM, WorkflowType: shift.WorkflowRecuperation,
		PulltabsTotal: dec("100"), DepositTotal: some("700"), PrevShiftID: "missing",
	}, "mic")
	assert.True(t, errors.Is(err, generic.ErrPrecondition))
}

func TestService_Submit(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	rec, err := svc.Submit(ctx, submission(), "mic-7")

	require.NoError(t, err)
	assert.Equal(t, shift.StatusSubmitted, rec.Status)
	assert.Equal(t, shift.WorkflowNormal, rec.WorkflowType)
	assertDec(t, "125", rec.DepositTotal)
	assertDec(t, "100.50", rec.Sales.CashTotal)
	assert.Equal(t, 42, *rec.Players)

	cash, ok := store.CashCount(rec.ID)
	require.True(t, ok)
	assertDec(t, "100.50", cash.TotalValue)
	assert.Len(t, store.Checks(rec.ID), 1)
}

func TestService_SubmitKeepsReportedTotals(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// GIVEN: a previous PM shift that a back-office record would chain to
	_, err := svc.Create(ctx, normalInput("2025-03-13", shift.PM, "3900"), "office")
	require.NoError(t, err)

	// WHEN: the next AM shift arrives from the MIC form
	rec, err := svc.Submit(ctx, submission(), "mic-7")

	// THEN: figures are stored as reported, not derived from the chain
	require.NoError(t, err)
	assert.Empty(t, rec.PrevShiftID)
	assertDec(t, "100", rec.BingoTotal)
	assert.False(t, rec.BeginningBox.Valid)
	assert.False(t, rec.EndingBox.Valid)
}

func TestService_SubmitRestrictedPlayerRejected(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := svc.AddRestrictedPlayer(ctx, "PAT SMITH", "Stop payment on file")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, submission(), "mic-7")

	var ierr *generic.IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, shift.KindRestrictedPlayer, ierr.Kind)
	list, _ := store.ListShifts(ctx, shift.Filter{})
	assert.Empty(t, list)
}

func TestService_SubmitFailureLeavesNothing(t *testing.T) {
	svc, store := newService(t)
	store.FailSubmission = generic.ErrTransactionFailed

	_, err := svc.Submit(context.Background(), submission(), "mic-7")

	assert.True(t, errors.Is(err, generic.ErrTransactionFailed))
	_, ok := store.CashCount("shift-1")
	assert.False(t, ok)
}

func TestExportWorkbook(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, normalInput("2025-03-14", shift.AM, "3900"), "mic")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, submission(), "mic")
	require.NoError(t, err)
	records, err := svc.List(ctx, shift.Filter{From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)

	data, err := shift.ExportWorkbook(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(shift.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "2025-03-14", rows[1][0])
}
