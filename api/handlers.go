/*
handlers.go - HTTP API handlers for the hall back office and public site

PURPOSE:
  Exposes the ops schema, versioned schedule/pricing, settings and shift
  workflows via REST. Handles HTTP request/response and JSON, and
  delegates everything else to the workflow and domain packages.

ENDPOINTS:
  Ops schema (admin):
    GET/PUT /api/admin/ops-schema/draft     Load / save the draft
    POST    /api/admin/ops-schema/validate  Issues, constraints, score
    POST    /api/admin/ops-schema/publish   Compile and go live
    POST    /api/admin/ops-schema/rollback  Copy live back into the draft
    GET     /api/admin/ops-schema/history   Published snapshots
    GET     /api/admin/ops-schema/agenda    Run sheet (?format=text)
    POST    /api/admin/ops-schema/apply-holidays  Holiday overrides into the draft
    POST    /api/admin/schedule/doors-open  Doors-open quick edit
    GET     /api/admin/holiday-rules        Rules and ?year= occurrences
    POST    /api/admin/holiday-rules        Insert or replace one rule

  Versions (admin), {kind} = schedule | pricing:
    GET/PUT /api/admin/{kind}/draft
    POST    /api/admin/{kind}/publish
    POST    /api/admin/{kind}/rollback
    GET     /api/admin/{kind}/versions

  Settings (admin):
    GET/PUT /api/admin/settings/{key}/draft
    DELETE  /api/admin/settings/{key}/draft      Revert to published
    GET     /api/admin/settings/{key}/published
    POST    /api/admin/settings/{key}/publish
    GET     /api/admin/settings/{key}/history
    POST    /api/admin/settings/{key}/rollback

  Shifts (admin):
    GET/POST   /api/admin/shifts
    PUT/DELETE /api/admin/shifts/{id}
    GET        /api/admin/shifts/export      XLSX report
    POST       /api/admin/shifts/reconcile   Preview, nothing stored
    POST       /api/admin/mic/shifts         MIC wizard submission
    GET/POST   /api/admin/restricted-players

  Public:
    GET /api/pricing, /api/schedule, /api/next-session
    GET /api/calendar/{date}, /api/calendar?from=&to=

ACTOR:
  Admin writes record the X-Actor header as the acting user.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation, precondition and integrity errors, bad input
  - 404: Resource not found
  - 409: Conflict (a concurrent publish won)
  - 500: Internal errors

SECURITY NOTE:
  Authentication is handled in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/hallops/factory"
	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
	"github.com/warp/hallops/pricing"
	"github.com/warp/hallops/schedule"
	"github.com/warp/hallops/shift"
	"github.com/warp/hallops/workflow"
)

// ActorHeader names the acting user of admin writes.
const ActorHeader = "X-Actor"

const maxBodyBytes = 4 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services are the workflows the handlers delegate to.
type Services struct {
	OpsSchema *workflow.OpsSchema
	Versions  *workflow.Versions
	Settings  *workflow.Settings
	Shifts    *shift.Service

	// Documents serves the compiled public pricing and schedule.
	Documents generic.SettingsStore

	// Ping checks the database for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	log      zerolog.Logger
	now      func() time.Time
	location *time.Location
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock overrides time.Now for public time-based endpoints.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithLocation sets the hall's local time zone.
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *Handler) { h.location = loc }
}

// NewHandler creates a new handler.
func NewHandler(s Services, log zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		Services: s,
		log:      log.With().Str("component", "api").Logger(),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func actor(r *http.Request) string {
	if a := r.Header.Get(ActorHeader); a != "" {
		return a
	}
	return "admin"
}

// =============================================================================
// OPS SCHEMA
// =============================================================================

// GetOpsDraft returns the working draft.
func (h *Handler) GetOpsDraft(w http.ResponseWriter, r *http.Request) {
	s, err := h.OpsSchema.GetDraft(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveOpsDraft stores a JSON or YAML ops schema. Validation problems come
// back as warnings; the draft is always saved.
func (h *Handler) SaveOpsDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := h.readSchema(w, r)
	if !ok {
		return
	}
	warnings, err := h.OpsSchema.SaveDraft(r.Context(), s, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if warnings == nil {
		warnings = []generic.Issue{}
	}
	writeJSON(w, http.StatusOK, SaveOpsDraftResponse{Schema: s, Warnings: warnings})
}

// ValidateOps checks a posted schema without saving it.
func (h *Handler) ValidateOps(w http.ResponseWriter, r *http.Request) {
	s, ok := h.readSchema(w, r)
	if !ok {
		return
	}
	issues := opsschema.Validate(s)
	if issues == nil {
		issues = []generic.Issue{}
	}
	violations := opsschema.CheckConstraints(s)
	if violations == nil {
		violations = []opsschema.Violation{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:        len(issues) == 0,
		Issues:       issues,
		Violations:   violations,
		Completeness: opsschema.Completeness(s, violations),
	})
}

// PublishOps compiles the draft and makes it live.
func (h *Handler) PublishOps(w http.ResponseWriter, r *http.Request) {
	result, err := h.OpsSchema.Publish(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RollbackOps restores the live schema into the draft.
func (h *Handler) RollbackOps(w http.ResponseWriter, r *http.Request) {
	s, err := h.OpsSchema.Rollback(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// OpsHistory lists published snapshots, newest first.
func (h *Handler) OpsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.OpsSchema.History(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if history == nil {
		history = []workflow.OpsHistoryMeta{}
	}
	writeJSON(w, http.StatusOK, history)
}

// OpsAgenda renders the draft's run sheet.
func (h *Handler) OpsAgenda(w http.ResponseWriter, r *http.Request) {
	s, err := h.OpsSchema.GetDraft(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	entries := opsschema.GenerateAgenda(s)
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, opsschema.FormatAgenda(entries, r.URL.Query().Get("context") != "false"))
		return
	}
	if entries == nil {
		entries = []opsschema.AgendaEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// SetDoorsOpen records a doors-open time for one date on the draft.
func (h *Handler) SetDoorsOpen(w http.ResponseWriter, r *http.Request) {
	var req DoorsOpenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.OpsSchema.SetDoorsOpen(r.Context(), req.Date, req.Time, req.Reason, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ApplyHolidays writes holiday overrides into the draft.
func (h *Handler) ApplyHolidays(w http.ResponseWriter, r *http.Request) {
	added, err := h.OpsSchema.ApplyHolidays(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if added == nil {
		added = []opsschema.Override{}
	}
	writeJSON(w, http.StatusOK, ApplyHolidaysResponse{Added: added})
}

// HolidayRules lists the rules and their occurrences in ?year= (default
// the current year).
func (h *Handler) HolidayRules(w http.ResponseWriter, r *http.Request) {
	year := h.now().In(h.location).Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || len(raw) != 4 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "year must be YYYY", nil)
			return
		}
		year = n
	}
	result, err := h.OpsSchema.HolidayYear(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SaveHolidayRule inserts or replaces one holiday rule.
func (h *Handler) SaveHolidayRule(w http.ResponseWriter, r *http.Request) {
	var rule opsschema.HolidayRule
	if !decodeJSON(w, r, &rule) {
		return
	}
	saved, err := h.OpsSchema.SaveHolidayRule(r.Context(), rule, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) readSchema(w http.ResponseWriter, r *http.Request) (*opsschema.Schema, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Failed to read body", err)
		return nil, false
	}
	s, err := factory.ParseOpsSchema(data)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	return s, true
}

// =============================================================================
// VERSIONS
// =============================================================================

// VersionHandlers serves the draft/publish/rollback routes of one kind.
type VersionHandlers struct {
	h    *Handler
	kind generic.DocumentKind
}

// VersionRoutes returns the handlers for kind.
func (h *Handler) VersionRoutes(kind generic.DocumentKind) VersionHandlers {
	return VersionHandlers{h: h, kind: kind}
}

func (v VersionHandlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := v.h.Versions.Draft(r.Context(), v.kind)
	if err != nil {
		v.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(draft))
}

func (v VersionHandlers) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, err := v.h.Versions.SaveDraft(r.Context(), v.kind, workflow.DraftInput{
		WeekStart: req.WeekStart,
		Slots:     req.Slots,
		Content:   req.Content,
		Comment:   req.Comment,
	}, actor(r))
	if err != nil {
		v.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(draft))
}

func (v VersionHandlers) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	published, err := v.h.Versions.Publish(r.Context(), v.kind, actor(r), req.Comment)
	if err != nil {
		v.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(published))
}

func (v VersionHandlers) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackVersionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VersionID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "version_id is required", nil)
		return
	}
	restored, err := v.h.Versions.Rollback(r.Context(), v.kind, req.VersionID, actor(r), req.Comment)
	if err != nil {
		v.h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(restored))
}

func (v VersionHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := v.h.Versions.List(r.Context(), v.kind)
	if err != nil {
		v.h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]VersionDTO, len(list))
	for i := range list {
		dtos[i] = toVersionDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetSettingDraft returns the draft of a key, falling back to its
// published value.
func (h *Handler) GetSettingDraft(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.Settings.GetDraft(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if value == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "Setting not found", nil)
		return
	}
	writeRawJSON(w, http.StatusOK, value)
}

// SaveSettingDraft stores the request body as the draft of a key.
func (h *Handler) SaveSettingDraft(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Failed to read body", err)
		return
	}
	if err := h.Settings.SaveDraft(r.Context(), chi.URLParam(r, "key"), data); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// DiscardSettingDraft drops unpublished edits to a key.
func (h *Handler) DiscardSettingDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.DiscardDraft(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPublishedSetting returns the live value of a key.
func (h *Handler) GetPublishedSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, version, err := h.Settings.GetPublished(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if value == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "Setting not published", nil)
		return
	}
	writeJSON(w, http.StatusOK, PublishedSettingResponse{Key: key, Version: version, Value: value})
}

// PublishSetting publishes the draft of a key.
func (h *Handler) PublishSetting(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	entry, err := h.Settings.Publish(r.Context(), chi.URLParam(r, "key"), actor(r), req.Comment)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// SettingHistory lists published versions of a key, newest first.
func (h *Handler) SettingHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	history, err := h.Settings.History(r.Context(), chi.URLParam(r, "key"), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if history == nil {
		history = []workflow.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// RollbackSetting republishes an earlier version of a key.
func (h *Handler) RollbackSetting(w http.ResponseWriter, r *http.Request) {
	var req RollbackSettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.Settings.Rollback(r.Context(), chi.URLParam(r, "key"), req.Version, actor(r), req.Comment)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// =============================================================================
// SHIFTS
// =============================================================================

// ListShifts returns shift records filtered by the query string.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	records, err := h.Shifts.List(r.Context(), shiftFilter(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if records == nil {
		records = []shift.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// CreateShift stores a new shift record.
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var in shift.RecordInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := h.Shifts.Create(r.Context(), in, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateShift recomputes and stores an existing record.
func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	var in shift.RecordInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := h.Shifts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteShift soft-deletes a record.
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.Shifts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitMICShift stores a MIC wizard submission.
func (h *Handler) SubmitMICShift(w http.ResponseWriter, r *http.Request) {
	var sub shift.Submission
	if !decodeJSON(w, r, &sub) {
		return
	}
	rec, err := h.Shifts.Submit(r.Context(), sub, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ReconcilePreview reconciles posted figures without storing anything.
func (h *Handler) ReconcilePreview(w http.ResponseWriter, r *http.Request) {
	var req ReconcilePreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, shift.Reconcile(
		shift.CashTotal(req.Denominations),
		shift.ChecksTotal(req.CheckLogs),
		req.SalesBingo.Add(req.SalesPulltabs),
		h.Shifts.Tolerance(),
	))
}

// ExportShifts streams the filtered records as an XLSX workbook.
func (h *Handler) ExportShifts(w http.ResponseWriter, r *http.Request) {
	records, err := h.Shifts.List(r.Context(), shiftFilter(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	data, err := shift.ExportWorkbook(records)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="shifts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListRestrictedPlayers lists restricted players (?active=false for all).
func (h *Handler) ListRestrictedPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.Shifts.RestrictedPlayers(r.Context(), r.URL.Query().Get("active") != "false")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if players == nil {
		players = []shift.RestrictedPlayer{}
	}
	writeJSON(w, http.StatusOK, players)
}

// AddRestrictedPlayer adds a restricted player.
func (h *Handler) AddRestrictedPlayer(w http.ResponseWriter, r *http.Request) {
	var req RestrictedPlayerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Shifts.AddRestrictedPlayer(r.Context(), req.Name, req.Notes)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func shiftFilter(r *http.Request) shift.Filter {
	q := r.URL.Query()
	return shift.Filter{
		From:           q.Get("from"),
		To:             q.Get("to"),
		Shift:          shift.Designation(q.Get("shift")),
		Workflow:       shift.Workflow(q.Get("workflow")),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}
}

// =============================================================================
// PUBLIC
// =============================================================================

// PublicPricing serves the compiled pricing document, or the active
// pricing version when no ops schema has been published.
func (h *Handler) PublicPricing(w http.ResponseWriter, r *http.Request) {
	h.publicDocument(w, r, workflow.KeyPricing, generic.KindPricing)
}

// PublicSchedule serves the compiled schedule, or the active schedule
// version when no ops schema has been published.
func (h *Handler) PublicSchedule(w http.ResponseWriter, r *http.Request) {
	h.publicDocument(w, r, workflow.KeySchedule, generic.KindSchedule)
}

func (h *Handler) publicDocument(w http.ResponseWriter, r *http.Request, key string, kind generic.DocumentKind) {
	raw, err := h.Documents.GetSetting(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if raw == nil {
		v, err := h.Versions.Active(r.Context(), kind)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		if kind != generic.KindPricing {
			writeJSON(w, http.StatusOK, toVersionDTO(v))
			return
		}
		raw = v.Content
	}
	if kind == generic.KindPricing {
		if raw, err = pricing.CompileForPublic(raw, h.now().In(h.location)); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// NextSession returns the next session of the active schedule.
func (h *Handler) NextSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.Versions.Active(r.Context(), generic.KindSchedule)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	now := h.now().In(h.location)
	resp := NextSessionResponse{Now: now}
	if next, ok := schedule.NextSession(v.Slots, now); ok {
		resp.Session = next
	}
	writeJSON(w, http.StatusOK, resp)
}

// CalendarDay resolves one date against the live schema.
func (h *Handler) CalendarDay(w http.ResponseWriter, r *http.Request) {
	live, err := h.OpsSchema.GetLive(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	eff, err := opsschema.Resolve(&live.Calendar, chi.URLParam(r, "date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

// CalendarRange resolves every date in ?from=&to= against the live schema.
func (h *Handler) CalendarRange(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "from and to are required", nil)
		return
	}
	live, err := h.OpsSchema.GetLive(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	days, err := opsschema.ResolveRange(&live.Calendar, from, to)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.log.Error().Err(err).Msg("health check failed")
			resp.Status, resp.Database = "degraded", "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRawJSON(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := ErrorResponse{Error: message, Code: code}
	if err, ok := details.(error); ok {
		resp.Details = err.Error()
	} else if details != nil {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps workflow and store errors to HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *generic.ValidationError
	var perr *generic.PreconditionError
	var ierr *generic.IntegrityError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, CodeValidation, verr.Error(), verr.Issues)
	case errors.As(err, &perr):
		details := map[string]any{"op": perr.Op}
		for k, v := range perr.Context {
			details[k] = v
		}
		writeError(w, http.StatusBadRequest, CodePrecondition, perr.Reason, details)
	case errors.As(err, &ierr):
		writeError(w, http.StatusBadRequest, CodeIntegrity, ierr.Message,
			map[string]any{"kind": ierr.Kind, "entity": ierr.Entity})
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, CodeConflict, "Conflicting update, retry", nil)
	default:
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}
