/*
templates.go - Template-based pricing documents

PURPOSE:
  A pricing version holds either a plain pricing config (daytime/evening
  sections) or a template document (schemaVersion 2): named configs plus
  rules choosing one per day, and dated or weekly promotions. The public
  pricing page gets the config in effect today with today's promotions.

TEMPLATE PRECEDENCE (first match wins):
  1. dateOverrides[date]           isOverride = true
  2. weeklyRotation["Sun".."Sat"]  numeric keys "0".."6" are also read
  3. defaultTemplateId
  An id naming no template falls through to the next level. When nothing
  matches the config is {} and the template name "Unknown".

PROMOTIONS:
  Active promotions whose date, weekday and [startDate, endDate] bounds
  all admit the day, ordered by sortOrder.

SEE ALSO:
  - workflow/versions.go: Validate runs on pricing publish
  - api/handlers.go: PublicPricing
*/
package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/warp/hallops/generic"
)

// SchemaVersion marks a template document.
const SchemaVersion = 2

// UnknownTemplate names the empty config used when nothing resolves.
const UnknownTemplate = "Unknown"

// Document is a template pricing document.
type Document struct {
	SchemaVersion     int               `json:"schemaVersion"`
	Templates         []Template        `json:"templates"`
	DefaultTemplateID string            `json:"defaultTemplateId"`
	WeeklyRotation    map[string]string `json:"weeklyRotation"`
	DateOverrides     []DateOverride    `json:"dateOverrides"`
	Promotions        []Promotion       `json:"promotions"`
}

type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config"`
	IsVisible   *bool           `json:"isVisible,omitempty"`
}

type DateOverride struct {
	Date       string `json:"date"`
	TemplateID string `json:"templateId"`
	Note       string `json:"note,omitempty"`
	IsVisible  *bool  `json:"isVisible,omitempty"`
}

// Promotion is a special shown on the pricing page. DayOfWeek is 0..6
// with 0 = Sunday.
type Promotion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Badge       string `json:"badge,omitempty"`
	DayOfWeek   *int   `json:"dayOfWeek,omitempty"`
	Date        string `json:"date,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	IsActive    bool   `json:"isActive"`
	SortOrder   int    `json:"sortOrder,omitempty"`
}

// Effective is the template chosen for one day.
type Effective struct {
	Config       json.RawMessage
	TemplateName string
	IsOverride   bool
}

// Meta describes how a public document was resolved.
type Meta struct {
	EffectiveDate string `json:"effectiveDate"`
	TemplateName  string `json:"templateName"`
	IsOverride    bool   `json:"isOverride"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes content as a template document. ok is false for plain
// configs and anything else without schemaVersion 2.
func Parse(content json.RawMessage) (*Document, bool, error) {
	var head struct {
		SchemaVersion any `json:"schemaVersion"`
	}
	if err := json.Unmarshal(content, &head); err != nil {
		return nil, false, nil
	}
	if v, isNum := head.SchemaVersion.(float64); !isNum || v != SchemaVersion {
		return nil, false, nil
	}
	var doc Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, true, fmt.Errorf("decode pricing templates: %w", err)
	}
	return &doc, true, nil
}

func (d *Document) template(id string) (Template, bool) {
	if id == "" {
		return Template{}, false
	}
	for _, t := range d.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveTemplate picks the template in effect on day.
func (d *Document) ResolveTemplate(day time.Time) Effective {
	date := generic.FormatDate(day)
	for _, o := range d.DateOverrides {
		if o.Date != date {
			continue
		}
		if t, ok := d.template(o.TemplateID); ok {
			return Effective{Config: t.Config, TemplateName: t.Name, IsOverride: true}
		}
		break
	}

	id, ok := d.WeeklyRotation[generic.WeekdayCode(day)]
	if !ok {
		id = d.WeeklyRotation[strconv.Itoa(int(day.Weekday()))]
	}
	if t, ok := d.template(id); ok {
		return Effective{Config: t.Config, TemplateName: t.Name}
	}

	if t, ok := d.template(d.DefaultTemplateID); ok {
		return Effective{Config: t.Config, TemplateName: t.Name}
	}
	return Effective{Config: json.RawMessage(`{}`), TemplateName: UnknownTemplate}
}

// PromotionsOn returns the active promotions that apply on day.
func (d *Document) PromotionsOn(day time.Time) []Promotion {
	date := generic.FormatDate(day)
	weekday := int(day.Weekday())
	out := []Promotion{}
	for _, p := range d.Promotions {
		switch {
		case !p.IsActive:
		case p.Date != "" && p.Date != date:
		case p.DayOfWeek != nil && *p.DayOfWeek != weekday:
		case p.StartDate != "" && p.StartDate > date:
		case p.EndDate != "" && p.EndDate < date:
		default:
			out = append(out, p)
		}
	}
	sortPromotions(out)
	return out
}

// SpecialsByDay groups recurring weekday promotions by day code. Dated
// one-offs are left out.
func (d *Document) SpecialsByDay() map[string][]Promotion {
	out := make(map[string][]Promotion, len(generic.WeekdayCodes))
	for i, code := range generic.WeekdayCodes {
		list := []Promotion{}
		for _, p := range d.Promotions {
			if p.IsActive && p.Date == "" && p.DayOfWeek != nil && *p.DayOfWeek == i {
				list = append(list, p)
			}
		}
		sortPromotions(list)
		out[code] = list
	}
	return out
}

func sortPromotions(list []Promotion) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].SortOrder < list[j].SortOrder })
}

// CompileForPublic renders content for the public pricing page on day.
// Plain configs are returned unchanged. Template documents become the
// effective config with promotions, todaySpecials, weekSpecialsByDay and
// meta merged in.
func CompileForPublic(content json.RawMessage, day time.Time) (json.RawMessage, error) {
	doc, ok, err := Parse(content)
	if err != nil || !ok {
		return content, err
	}
	eff := doc.ResolveTemplate(day)

	out := map[string]any{}
	if len(eff.Config) > 0 {
		var config map[string]json.RawMessage
		if err := json.Unmarshal(eff.Config, &config); err != nil {
			return nil, fmt.Errorf("template %q config: %w", eff.TemplateName, err)
		}
		for k, v := range config {
			out[k] = v
		}
	}
	today := doc.PromotionsOn(day)
	out["promotions"] = today
	out["todaySpecials"] = today
	out["weekSpecialsByDay"] = doc.SpecialsByDay()
	out["meta"] = Meta{
		EffectiveDate: generic.FormatDate(day),
		TemplateName:  eff.TemplateName,
		IsOverride:    eff.IsOverride,
	}
	return json.Marshal(out)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks a template document before publish. Plain configs pass.
func Validate(content json.RawMessage) error {
	doc, ok, err := Parse(content)
	if err != nil {
		return generic.Precondition("publish_pricing", err.Error())
	}
	if !ok {
		return nil
	}

	var issues []generic.Issue
	add := func(p generic.Path, code, format string, args ...any) {
		issues = append(issues, generic.Issue{Path: p, Code: code, Message: fmt.Sprintf(format, args...)})
	}
	seen := map[string]bool{}
	for i, t := range doc.Templates {
		if t.ID == "" {
			add(generic.Path{"templates", i, "id"}, "required", "is required")
		} else if seen[t.ID] {
			add(generic.Path{"templates", i, "id"}, "duplicate_id", "duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
	}
	if !seen[doc.DefaultTemplateID] || doc.DefaultTemplateID == "" {
		add(generic.Path{"defaultTemplateId"}, "unknown_reference", "unknown template %q", doc.DefaultTemplateID)
	}
	days := make([]string, 0, len(doc.WeeklyRotation))
	for day := range doc.WeeklyRotation {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		if id := doc.WeeklyRotation[day]; id != "" && !seen[id] {
			add(generic.Path{"weeklyRotation", day}, "unknown_reference", "unknown template %q", id)
		}
	}
	for i, o := range doc.DateOverrides {
		if !generic.IsValidDate(o.Date) {
			add(generic.Path{"dateOverrides", i, "date"}, "invalid_date", "%q is not a valid YYYY-MM-DD date", o.Date)
		}
		if !seen[o.TemplateID] {
			add(generic.Path{"dateOverrides", i, "templateId"}, "unknown_reference", "unknown template %q", o.TemplateID)
		}
	}
	for i, p := range doc.Promotions {
		if p.DayOfWeek != nil && (*p.DayOfWeek < 0 || *p.DayOfWeek > 6) {
			add(generic.Path{"promotions", i, "dayOfWeek"}, "invalid_enum", "must be 0 (Sunday) to 6")
		}
	}
	if len(issues) > 0 {
		return &generic.ValidationError{Issues: issues}
	}
	return nil
}
