/*
types.go - Shift records, MIC submissions and their money fields

PURPOSE:
  A shift record is one AM or PM shift's cash accounting: pull-tab sales,
  the bank deposit, the cash box at shift start and end, and the derived
  bingo figures. MIC submissions add a denomination cash count and a
  check log, reconciled against recorded sales.

MONEY:
  All amounts are decimal.Decimal. Optional amounts use
  decimal.NullDecimal so "not supplied" and "zero" stay distinct; the
  workflows depend on that difference (an absent beginning box is
  inherited, a zero one is not).

WORKFLOWS:
  NORMAL                    deposit required, box fields informational
  NEGATIVE_BINGO_BOX        bingo paid out of the box; deposit = pull tabs
  RECUPERATION_BOX_RETURN   box returned after a negative shift; links to
                            the previous shift

SEE ALSO:
  - totals.go: Workflow state machine
  - reconcile.go: Cash, checks and variance
  - service.go: Persistence flow
*/
package shift

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MaxBox is the largest amount a cash box may hold.
var MaxBox = decimal.NewFromInt(4000)

// Designation is the shift of day.
type Designation string

const (
	AM Designation = "AM"
	PM Designation = "PM"
)

// Valid reports whether d is AM or PM.
func (d Designation) Valid() bool { return d == AM || d == PM }

// Workflow classifies how the shift's box and deposit relate.
type Workflow string

const (
	WorkflowNormal       Workflow = "NORMAL"
	WorkflowNegativeBox  Workflow = "NEGATIVE_BINGO_BOX"
	WorkflowRecuperation Workflow = "RECUPERATION_BOX_RETURN"
)

// Valid reports whether w is a known workflow.
func (w Workflow) Valid() bool {
	switch w {
	case WorkflowNormal, WorkflowNegativeBox, WorkflowRecuperation:
		return true
	}
	return false
}

// Status of a stored shift record.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusFlagged   Status = "FLAGGED"
)

// Negative bingo reason codes.
const (
	ReasonHighPayouts = "HighPayouts"
	ReasonJackpotHit  = "JackpotHit"
	ReasonPromoNight  = "PromoNight"
	ReasonOther       = "Other"
)

var reasonCodes = map[string]bool{
	ReasonHighPayouts: true, ReasonJackpotHit: true, ReasonPromoNight: true, ReasonOther: true,
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is a persisted shift.
type Record struct {
	ID           string      `json:"id"`
	Date         string      `json:"date"`
	Shift        Designation `json:"shift"`
	WorkflowType Workflow    `json:"workflow_type"`
	Status       Status      `json:"status"`

	PulltabsTotal decimal.Decimal     `json:"pulltabs_total"`
	DepositTotal  decimal.Decimal     `json:"deposit_total"`
	BingoTotal    decimal.Decimal     `json:"bingo_total"`
	BeginningBox  decimal.NullDecimal `json:"beginning_box"`
	EndingBox     decimal.NullDecimal `json:"ending_box"`
	BingoActual   decimal.NullDecimal `json:"bingo_actual"`
	DepositActual decimal.NullDecimal `json:"deposit_actual"`
	Players       *int                `json:"players,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	PrevShiftID   string              `json:"prev_shift_id,omitempty"`

	// Set by MIC submissions only.
	Sales                   *SalesSummary `json:"sales,omitempty"`
	VarianceNote            string        `json:"variance_note,omitempty"`
	NegativeBingoReasonCode string        `json:"negative_bingo_reason_code,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// SalesSummary holds the reconciled figures of a MIC submission.
type SalesSummary struct {
	SalesBingo    decimal.Decimal `json:"sales_bingo"`
	SalesPulltabs decimal.Decimal `json:"sales_pulltabs"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
	CashTotal     decimal.Decimal `json:"cash_total"`
	ChecksTotal   decimal.Decimal `json:"checks_total"`
	Variance      decimal.Decimal `json:"variance"`
}

// RecordInput is the admin create/update payload.
type RecordInput struct {
	Date             string              `json:"date"`
	Shift            Designation         `json:"shift"`
	WorkflowType     Workflow            `json:"workflow_type"`
	PulltabsTotal    decimal.Decimal     `json:"pulltabs_total"`
	DepositTotal     decimal.NullDecimal `json:"deposit_total"`
	DepositBankTotal decimal.NullDecimal `json:"deposit_bank_total"`
	BeginningBox     decimal.NullDecimal `json:"beginning_box"`
	EndingBox        decimal.NullDecimal `json:"ending_box"`
	BingoActual      decimal.NullDecimal `json:"bingo_actual"`
	DepositActual    decimal.NullDecimal `json:"deposit_actual"`
	Players          *int                `json:"players,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	PrevShiftID      string              `json:"prev_shift_id,omitempty"`
}

// Filter narrows ListShifts. Empty fields match everything.
type Filter struct {
	From           string
	To             string
	Shift          Designation
	Workflow       Workflow
	IncludeDeleted bool
}

// =============================================================================
// MIC SUBMISSION
// =============================================================================

// Denominations is a cash drawer count.
type Denominations struct {
	Hundreds int `json:"denom_100_count"`
	Fifties  int `json:"denom_50_count"`
	Twenties int `json:"denom_20_count"`
	Tens     int `json:"denom_10_count"`
	Fives    int `json:"denom_5_count"`
	Ones     int `json:"denom_1_count"`
	Quarters int `json:"denom_quarters"`
	Dimes    int `json:"denom_dimes"`
	Nickels  int `json:"denom_nickels"`
	Pennies  int `json:"denom_pennies"`
}

// CheckEntry is one check accepted during the shift.
type CheckEntry struct {
	PlayerName     string          `json:"player_name"`
	CheckNumber    string          `json:"check_number"`
	Amount         decimal.Decimal `json:"amount"`
	StampedOnBack  bool            `json:"stamped_on_back"`
	PhoneDLWritten bool            `json:"phone_dl_written"`
}

// Submission is the full MIC shift wizard payload.
type Submission struct {
	Date                    string          `json:"date"`
	Shift                   Designation     `json:"shift"`
	Headcount               int             `json:"headcount"`
	SalesBingo              decimal.Decimal `json:"sales_bingo"`
	SalesPulltabs           decimal.Decimal `json:"sales_pulltabs"`
	NegativeBingoReasonCode string          `json:"negative_bingo_reason_code,omitempty"`
	Denominations           Denominations   `json:"denominations"`
	CheckLogs               []CheckEntry    `json:"check_logs"`
	VarianceNote            string          `json:"variance_note,omitempty"`
	Notes                   string          `json:"notes,omitempty"`

	WorkflowType  Workflow            `json:"workflow_type,omitempty"`
	BeginningBox  decimal.NullDecimal `json:"beginning_box"`
	EndingBox     decimal.NullDecimal `json:"ending_box"`
	BingoActual   decimal.NullDecimal `json:"bingo_actual"`
	DepositActual decimal.NullDecimal `json:"deposit_actual"`
}

// CashCount is the persisted denomination count of a submission.
type CashCount struct {
	ShiftID string `json:"shift_id"`
	Denominations
	TotalValue decimal.Decimal `json:"total_value"`
}

// RestrictedPlayer is a person whose checks may not be accepted.
type RestrictedPlayer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists shift records. Implementations: store/sqlite and
// MemoryStore.
type Store interface {
	CreateShift(ctx context.Context, r Record) error
	UpdateShift(ctx context.Context, r Record) error

	// GetShift returns generic.ErrNotFound for unknown ids. Soft-deleted
	// records are returned with IsDeleted set.
	GetShift(ctx context.Context, id string) (*Record, error)

	// ListShifts returns matches ordered by date then designation.
	ListShifts(ctx context.Context, f Filter) ([]Record, error)

	// FindPreviousShift returns the newest non-deleted shift before
	// (date, designation), or nil.
	FindPreviousShift(ctx context.Context, date string, designation Designation) (*Record, error)

	// SaveSubmission writes the record, its cash count and its checks
	// atomically.
	SaveSubmission(ctx context.Context, r Record, cash CashCount, checks []CheckEntry) error

	ListRestrictedPlayers(ctx context.Context, activeOnly bool) ([]RestrictedPlayer, error)
	CreateRestrictedPlayer(ctx context.Context, p RestrictedPlayer) error
}
