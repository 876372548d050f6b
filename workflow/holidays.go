package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/hallops/factory"
	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
	"github.com/warp/hallops/opsschema"
)

// KeyHolidayRules holds the admin-maintained holiday rule list.
const KeyHolidayRules = "holiday_rules"

// HolidayYear is the rule list with its occurrences in one year.
type HolidayYear struct {
	Year        int                           `json:"year"`
	Rules       []opsschema.HolidayRule       `json:"rules"`
	Occurrences []opsschema.HolidayOccurrence `json:"occurrences"`
}

// HolidayRules returns the stored rules, or the defaults when none have
// been saved.
func (w *OpsSchema) HolidayRules(ctx context.Context) ([]opsschema.HolidayRule, error) {
	return loadHolidayRules(ctx, w.store)
}

// HolidayYear expands the current rules over year.
func (w *OpsSchema) HolidayYear(ctx context.Context, year int) (*HolidayYear, error) {
	if year < 2000 || year > 2100 {
		return nil, generic.Precondition("holiday_year", "year must be between 2000 and 2100", "year", year)
	}
	rules, err := w.HolidayRules(ctx)
	if err != nil {
		return nil, err
	}
	rng := generic.DateRange{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	return &HolidayYear{Year: year, Rules: rules, Occurrences: opsschema.HolidayOccurrences(rules, rng)}, nil
}

// SaveHolidayRule inserts rule, or replaces the rule with the same id.
// A rule without an id gets a new one.
func (w *OpsSchema) SaveHolidayRule(ctx context.Context, rule opsschema.HolidayRule, actor string) (opsschema.HolidayRule, error) {
	const op = "save_holiday_rule"
	if rule.ID == "" {
		rule.ID = w.newID()
	}
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		rules, err := loadHolidayRules(ctx, tx)
		if err != nil {
			return err
		}
		replaced := false
		for i := range rules {
			if rules[i].ID == rule.ID {
				rules[i], replaced = rule, true
			}
		}
		if !replaced {
			rules = append(rules, rule)
		}
		if err := opsschema.ValidateHolidayRules(rules); err != nil {
			return err
		}
		return storeJSON(ctx, tx, KeyHolidayRules, rules)
	})
	if err != nil {
		return opsschema.HolidayRule{}, txError(op, err)
	}
	w.log.Info().Str("rule_id", rule.ID).Str("name", rule.Name).Str("actor", actor).Msg("holiday rule saved")
	return rule, nil
}

// ApplyHolidays adds the holiday overrides for the draft's calendar range
// to the draft. Holidays already present are left alone.
func (w *OpsSchema) ApplyHolidays(ctx context.Context, actor string) ([]opsschema.Override, error) {
	const op = "apply_holidays"
	var added []opsschema.Override
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		s, err := loadSchema(ctx, tx, KeyOpsSchemaDraft)
		if err != nil {
			return err
		}
		if s == nil {
			s = factory.NewDraftSchema(w.now().Year())
		}
		ensureCalendar(s, w.now().Year())
		rules, err := loadHolidayRules(ctx, tx)
		if err != nil {
			return err
		}
		if added, err = opsschema.ApplyHolidays(&s.Calendar, rules); err != nil {
			return err
		}
		return storeJSON(ctx, tx, KeyOpsSchemaDraft, s)
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition("ops_schema", "apply_holidays")
	w.log.Info().Int("added", len(added)).Str("actor", actor).Msg("holiday overrides applied to draft")
	return added, nil
}

func loadHolidayRules(ctx context.Context, s generic.SettingsStore) ([]opsschema.HolidayRule, error) {
	raw, err := s.GetSetting(ctx, KeyHolidayRules)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return opsschema.DefaultHolidayRules(), nil
	}
	var rules []opsschema.HolidayRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyHolidayRules, err)
	}
	return rules, nil
}
