package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	auditdomain "quillaborn/backend/internal/audit/domain"
	profiledomain "quillaborn/backend/internal/profile/domain"
	telemetrydomain "quillaborn/backend/internal/telemetry/domain"
	waitlistdomain "quillaborn/backend/internal/waitlist/domain"
	"quillaborn/backend/internal/waitlist/service"
)

type fakeAdmissions struct {
	token      *waitlistdomain.ApprovalToken
	approveErr error
	reissueErr error
}

func (f *fakeAdmissions) Approve(ctx context.Context, rawEmail string) (*waitlistdomain.ApprovalToken, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return f.token, nil
}

func (f *fakeAdmissions) Reissue(ctx context.Context, rawEmail string) (*waitlistdomain.ApprovalToken, error) {
	if f.reissueErr != nil {
		return nil, f.reissueErr
	}
	return f.token, nil
}

type fakeEntries struct {
	entries    []*waitlistdomain.Entry
	lastStatus waitlistdomain.Status
}

func (f *fakeEntries) ListEntries(ctx context.Context, status waitlistdomain.Status, limit, offset int) ([]*waitlistdomain.Entry, error) {
	f.lastStatus = status
	return f.entries, nil
}

type fakeProfiles struct {
	profiles []*profiledomain.Profile
	calls    int
}

func (f *fakeProfiles) List(ctx context.Context, limit, offset int) ([]*profiledomain.Profile, error) {
	f.calls++
	if offset >= len(f.profiles) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.profiles) {
		end = len(f.profiles)
	}
	return f.profiles[offset:end], nil
}

type memEmitter struct {
	mu     sync.Mutex
	events []*telemetrydomain.Event
}

func (m *memEmitter) Emit(ctx context.Context, event *telemetrydomain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memEmitter) getEvents() []*telemetrydomain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*telemetrydomain.Event(nil), m.events...)
}

func (m *memEmitter) waitForEvents(t *testing.T, want int) []*telemetrydomain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := m.getEvents(); len(events) >= want {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events; have %d", want, len(m.getEvents()))
	return nil
}

type fakeAudit struct {
	logs []*auditdomain.AuditLog
}

func (f *fakeAudit) List(ctx context.Context, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	return f.logs, nil
}

func router(a Admissions, e EntryLister, p ProfileLister) http.Handler {
	r := chi.NewRouter()
	New(a, e, p, nil, nil, nil).Routes(r)
	return r
}

func TestListWaitlist(t *testing.T) {
	entries := &fakeEntries{entries: []*waitlistdomain.Entry{
		{Email: "a@x.com", Status: waitlistdomain.StatusPending, CreatedAt: time.Now().UTC()},
	}}
	h := router(&fakeAdmissions{}, entries, &fakeProfiles{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/waitlist?status=pending", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if entries.lastStatus != waitlistdomain.StatusPending {
		t.Errorf("status filter = %q", entries.lastStatus)
	}
	var body struct {
		Entries []entryResponse `json:"entries"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Entries) != 1 || body.Entries[0].Email != "a@x.com" {
		t.Errorf("entries = %+v", body.Entries)
	}
}

func TestListWaitlist_BadStatus(t *testing.T) {
	h := router(&fakeAdmissions{}, &fakeEntries{}, &fakeProfiles{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/waitlist?status=banana", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestApprove(t *testing.T) {
	token := &waitlistdomain.ApprovalToken{Token: "tok1", Email: "a@x.com", CreatedAt: time.Now().UTC()}
	h := router(&fakeAdmissions{token: token}, &fakeEntries{}, &fakeProfiles{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/approve", strings.NewReader(`{"email":"a@x.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body tokenResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Token != "tok1" || body.Email != "a@x.com" {
		t.Errorf("body = %+v", body)
	}
}

func TestApprove_EmitsEvent(t *testing.T) {
	token := &waitlistdomain.ApprovalToken{Token: "tok1", Email: "a@x.com", CreatedAt: time.Now().UTC()}
	emitter := &memEmitter{}
	r := chi.NewRouter()
	New(&fakeAdmissions{token: token}, &fakeEntries{}, &fakeProfiles{}, nil, emitter, nil).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/approve", strings.NewReader(`{"email":"a@x.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	events := emitter.waitForEvents(t, 1)
	ev := events[0]
	if ev.EventType != telemetrydomain.EventWaitlistApprove {
		t.Errorf("EventType = %q", ev.EventType)
	}
	if ev.Email != "a@x.com" || ev.Actor != "admin" || ev.Outcome != "approve" {
		t.Errorf("event = %+v", ev)
	}

	// Reissue goes through the same path with its own outcome.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/reissue", strings.NewReader(`{"email":"a@x.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("reissue code = %d", rec.Code)
	}
	events = emitter.waitForEvents(t, 2)
	if events[1].Outcome != "reissue" {
		t.Errorf("reissue outcome = %q", events[1].Outcome)
	}
}

func TestApprove_NotPending(t *testing.T) {
	h := router(&fakeAdmissions{approveErr: service.ErrNotPending}, &fakeEntries{}, &fakeProfiles{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/approve", strings.NewReader(`{"email":"a@x.com"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestReissue_NotApproved(t *testing.T) {
	h := router(&fakeAdmissions{reissueErr: service.ErrNotApproved}, &fakeEntries{}, &fakeProfiles{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/waitlist/reissue", strings.NewReader(`{"email":"a@x.com"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestListAudit(t *testing.T) {
	trail := &fakeAudit{logs: []*auditdomain.AuditLog{
		{ID: "a1", Actor: "admin", Action: "approve", Resource: "waitlist_entry", IP: "10.0.0.1", CreatedAt: time.Now().UTC()},
	}}
	r := chi.NewRouter()
	New(&fakeAdmissions{}, &fakeEntries{}, &fakeProfiles{}, trail, nil, nil).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body struct {
		Logs []auditLogResponse `json:"logs"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Logs) != 1 || body.Logs[0].Action != "approve" || body.Logs[0].Actor != "admin" {
		t.Errorf("logs = %+v", body.Logs)
	}
}

func TestListAudit_NoTrailConfigured(t *testing.T) {
	h := router(&fakeAdmissions{}, &fakeEntries{}, &fakeProfiles{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"logs":[]`) {
		t.Errorf("body = %s, want empty logs array", rec.Body.String())
	}
}

func TestExportUsers(t *testing.T) {
	profiles := &fakeProfiles{profiles: []*profiledomain.Profile{
		{ID: "u1", Username: "inkwell", Interests: []string{"comics", "ink"}, EarlyAccess: true, CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "u2"},
	}}
	h := router(&fakeAdmissions{}, &fakeEntries{}, profiles)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("bad csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "u1" || rows[1][3] != "comics;ink" || rows[1][5] != "true" {
		t.Errorf("row 1 = %v", rows[1])
	}
}
