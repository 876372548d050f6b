package shift

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// RECONCILIATION - Counted cash + checks against recorded sales
// =============================================================================

// DefaultTolerance is the largest variance still considered balanced.
var DefaultTolerance = decimal.NewFromInt(1)

var (
	cents      = decimal.New(1, -2)
	nickel     = decimal.New(5, -2)
	dime       = decimal.New(1, -1)
	quarter    = decimal.New(25, -2)
	faceValues = []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(50), decimal.NewFromInt(20),
		decimal.NewFromInt(10), decimal.NewFromInt(5), decimal.NewFromInt(1),
		quarter, dime, nickel, cents,
	}
)

var denomFields = []string{
	"denom_100_count", "denom_50_count", "denom_20_count", "denom_10_count", "denom_5_count",
	"denom_1_count", "denom_quarters", "denom_dimes", "denom_nickels", "denom_pennies",
}

func (d Denominations) counts() []int {
	return []int{d.Hundreds, d.Fifties, d.Twenties, d.Tens, d.Fives, d.Ones, d.Quarters, d.Dimes, d.Nickels, d.Pennies}
}

// CashTotal sums count x face value over all ten denominations, rounded
// to cents.
func CashTotal(d Denominations) decimal.Decimal {
	total := decimal.Zero
	for i, n := range d.counts() {
		total = total.Add(faceValues[i].Mul(decimal.NewFromInt(int64(n))))
	}
	return total.Round(2)
}

// ChecksTotal sums check amounts.
func ChecksTotal(checks []CheckEntry) decimal.Decimal {
	total := decimal.Zero
	for _, c := range checks {
		total = total.Add(c.Amount)
	}
	return total
}

// Reconciliation is the variance summary of one shift.
type Reconciliation struct {
	CashTotal   decimal.Decimal `json:"cash_total"`
	ChecksTotal decimal.Decimal `json:"checks_total"`
	SalesTotal  decimal.Decimal `json:"sales_total"`
	Variance    decimal.Decimal `json:"variance"`
	IsBalanced  bool            `json:"is_balanced"`
	Tolerance   decimal.Decimal `json:"variance_tolerance"`
}

// Reconcile computes variance = cash + checks - sales, rounded to cents,
// and whether it is within tolerance.
func Reconcile(cash, checks, sales, tolerance decimal.Decimal) Reconciliation {
	variance := cash.Add(checks).Sub(sales).Round(2)
	return Reconciliation{
		CashTotal:   cash,
		ChecksTotal: checks,
		SalesTotal:  sales,
		Variance:    variance,
		IsBalanced:  variance.Abs().LessThanOrEqual(tolerance),
		Tolerance:   tolerance,
	}
}

// =============================================================================
// SUBMISSION CHECKS
// =============================================================================

// Integrity error kinds.
const (
	KindUnverifiedCheck    = "unverified_check"
	KindRestrictedPlayer   = "restricted_player"
	KindUnbalancedVariance = "unbalanced_variance"
)

// Evaluation is the outcome of an accepted submission.
type Evaluation struct {
	Reconciliation
	Status Status `json:"status"`
}

// EvaluateSubmission validates a MIC submission, checks every check
// against the restricted list and reconciles the totals. A submission
// outside tolerance is accepted as FLAGGED only when it carries a
// variance note.
func EvaluateSubmission(sub Submission, restricted []RestrictedPlayer, tolerance decimal.Decimal) (Evaluation, error) {
	if issues := validateSubmission(sub); len(issues) > 0 {
		return Evaluation{}, &generic.ValidationError{Issues: issues}
	}

	for i, c := range sub.CheckLogs {
		if !c.StampedOnBack || !c.PhoneDLWritten {
			return Evaluation{}, &generic.IntegrityError{
				Kind:    KindUnverifiedCheck,
				Message: "all checks must be verified (stamped_on_back and phone_dl_written)",
				Entity:  map[string]any{"index": i, "check_number": c.CheckNumber},
			}
		}
		if p, ok := MatchRestricted(c.PlayerName, restricted); ok {
			return Evaluation{}, &generic.IntegrityError{
				Kind:    KindRestrictedPlayer,
				Message: "player \"" + c.PlayerName + "\" is restricted; cannot accept check",
				Entity:  map[string]any{"player_name": c.PlayerName, "reason": p.Notes},
			}
		}
	}

	rec := Reconcile(
		CashTotal(sub.Denominations),
		ChecksTotal(sub.CheckLogs),
		sub.SalesBingo.Add(sub.SalesPulltabs),
		tolerance,
	)
	if rec.IsBalanced {
		return Evaluation{Reconciliation: rec, Status: StatusSubmitted}, nil
	}
	if strings.TrimSpace(sub.VarianceNote) == "" {
		return Evaluation{}, &generic.IntegrityError{
			Kind:    KindUnbalancedVariance,
			Message: "variance of $" + rec.Variance.Abs().StringFixed(2) + " is outside tolerance; a variance_note is required",
			Entity:  map[string]any{"variance": rec.Variance.StringFixed(2)},
		}
	}
	return Evaluation{Reconciliation: rec, Status: StatusFlagged}, nil
}

// MatchRestricted finds an active restricted player with the same name,
// ignoring case and surrounding whitespace.
func MatchRestricted(name string, restricted []RestrictedPlayer) (RestrictedPlayer, bool) {
	needle := strings.TrimSpace(name)
	for _, p := range restricted {
		if p.Active && strings.EqualFold(strings.TrimSpace(p.Name), needle) {
			return p, true
		}
	}
	return RestrictedPlayer{}, false
}

func validateSubmission(sub Submission) []generic.Issue {
	var issues []generic.Issue
	add := func(p generic.Path, code, msg string) {
		issues = append(issues, generic.Issue{Path: p, Code: code, Message: msg})
	}

	if !generic.IsValidDate(sub.Date) {
		add(generic.Path{"date"}, "invalid_date", "must be YYYY-MM-DD")
	}
	if !sub.Shift.Valid() {
		add(generic.Path{"shift"}, "invalid_enum", "must be AM or PM")
	}
	if sub.Headcount < 0 {
		add(generic.Path{"headcount"}, "negative", "must be >= 0")
	}
	if sub.SalesPulltabs.IsNegative() {
		add(generic.Path{"sales_pulltabs"}, "negative", "must be >= 0")
	}
	if sub.SalesBingo.IsNegative() && sub.NegativeBingoReasonCode == "" {
		add(generic.Path{"negative_bingo_reason_code"}, "required", "required when sales_bingo < 0")
	}
	if sub.NegativeBingoReasonCode != "" && !reasonCodes[sub.NegativeBingoReasonCode] {
		add(generic.Path{"negative_bingo_reason_code"}, "invalid_enum", "must be HighPayouts, JackpotHit, PromoNight or Other")
	}
	if sub.WorkflowType != "" && !sub.WorkflowType.Valid() {
		add(generic.Path{"workflow_type"}, "invalid_enum", "unknown workflow")
	}
	for i, n := range sub.Denominations.counts() {
		if n < 0 {
			add(generic.Path{"denominations", denomFields[i]}, "negative", "counts must be >= 0")
		}
	}
	for i, c := range sub.CheckLogs {
		p := generic.Path{"check_logs", i}
		if strings.TrimSpace(c.PlayerName) == "" {
			add(generic.NewPath(p, "player_name"), "required", "player name required")
		}
		if strings.TrimSpace(c.CheckNumber) == "" {
			add(generic.NewPath(p, "check_number"), "required", "check number required")
		}
		if c.Amount.LessThan(cents) {
			add(generic.NewPath(p, "amount"), "invalid_amount", "amount must be > $0")
		}
	}
	return issues
}
