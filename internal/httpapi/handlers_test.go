package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carecall-platform/internal/audit"
	"carecall-platform/internal/auth"
	"carecall-platform/internal/calls"
	"carecall-platform/internal/memories"
	"carecall-platform/internal/notify"
	"carecall-platform/internal/rbac"
	"carecall-platform/internal/recipients"

	"github.com/gin-gonic/gin"
)

type fakeCallService struct {
	dispatched  []string
	phones      []string
	dispatchErr error
	hangups     []string
	hangupErr   error
}

func (f *fakeCallService) Dispatch(ctx context.Context, rec recipients.Recipient) (calls.Call, error) {
	if f.dispatchErr != nil {
		return calls.Call{}, f.dispatchErr
	}
	f.dispatched = append(f.dispatched, rec.ID)
	f.phones = append(f.phones, rec.Phone)
	return calls.Call{ID: "call-1", RecipientID: rec.ID, Status: calls.StatusInProgress}, nil
}

func (f *fakeCallService) Hangup(ctx context.Context, callSID string) error {
	if f.hangupErr != nil {
		return f.hangupErr
	}
	f.hangups = append(f.hangups, callSID)
	return nil
}

type fakeCallReader struct{ out []calls.Call }

func (f *fakeCallReader) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]calls.Call, error) {
	return f.out, nil
}

type fakeRecipientReader struct{ recs map[string]recipients.Recipient }

func (f *fakeRecipientReader) GetByID(ctx context.Context, id string) (recipients.Recipient, error) {
	rec, ok := f.recs[id]
	if !ok {
		return recipients.Recipient{}, recipients.ErrNotFound
	}
	return rec, nil
}

type fakeNotifications struct {
	out     []notify.Notification
	read    []string
	readErr error
}

func (f *fakeNotifications) ListByCaregiver(ctx context.Context, caregiverID string, limit int) ([]notify.Notification, error) {
	return f.out, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, caregiverID, id string) error {
	if f.readErr != nil {
		return f.readErr
	}
	f.read = append(f.read, id)
	return nil
}

type fakeMemoryReader struct{ out []memories.Memory }

func (f *fakeMemoryReader) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]memories.Memory, error) {
	return f.out, nil
}

func identity(userID, caregiverID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, caregiverID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type fixture struct {
	handlers Handlers
	calls    *fakeCallService
	notifs   *fakeNotifications
}

func newFixture() *fixture {
	f := &fixture{
		calls: &fakeCallService{},
		notifs: &fakeNotifications{out: []notify.Notification{
			{ID: "n-1", CaregiverID: "cg-1", Type: notify.TypeCallCompleted, Message: "done"},
		}},
	}
	f.handlers = Handlers{
		Calls:       f.calls,
		CallHistory: &fakeCallReader{out: []calls.Call{{ID: "call-1", RecipientID: "rec-1"}}},
		Recipients: &fakeRecipientReader{recs: map[string]recipients.Recipient{
			"rec-1": {ID: "rec-1", CaregiverID: "cg-1", Name: "Rose"},
			"rec-2": {ID: "rec-2", CaregiverID: "cg-other", Name: "Ted"},
		}},
		Notifications: f.notifs,
		Memories:      &fakeMemoryReader{out: []memories.Memory{{ID: "m-1", RecipientID: "rec-1"}}},
	}
	return f
}

func (f *fixture) router(caregiverID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(identity("u-1", caregiverID, role))
	r.POST("/v1/calls/test", f.handlers.TestCall)
	r.POST("/v1/calls/:call_sid/hangup", f.handlers.Hangup)
	r.GET("/v1/calls", f.handlers.ListCalls)
	r.GET("/v1/notifications", f.handlers.ListNotifications)
	r.POST("/v1/notifications/:id/read", f.handlers.MarkNotificationRead)
	r.GET("/v1/recipients/:recipient_id/memories", f.handlers.ListMemories)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTestCall(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(f.calls.dispatched) != 1 || f.calls.dispatched[0] != "rec-1" {
		t.Errorf("dispatched = %v", f.calls.dispatched)
	}
}

func TestTestCall_PhoneOverride(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-1","phone_number":"+15559990000"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(f.calls.phones) != 1 || f.calls.phones[0] != "+15559990000" {
		t.Errorf("dialed phones = %v", f.calls.phones)
	}
}

func TestTestCall_ForeignRecipientForbidden(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-2"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if len(f.calls.dispatched) != 0 {
		t.Errorf("no dispatch expected: %v", f.calls.dispatched)
	}
}

func TestTestCall_AdminReachesAnyRecipient(t *testing.T) {
	f := newFixture()
	r := f.router("cg-admin", rbac.RoleAdmin)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestTestCall_UnknownRecipient(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"nope"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestTestCall_CapacityMapsTo429(t *testing.T) {
	f := newFixture()
	f.calls.dispatchErr = calls.ErrCapacity
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-1"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestHangup(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/CA123/hangup", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(f.calls.hangups) != 1 || f.calls.hangups[0] != "CA123" {
		t.Errorf("hangups = %v", f.calls.hangups)
	}
}

func TestHangup_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{calls.ErrNotFound, http.StatusNotFound},
		{calls.ErrInvalidTransition, http.StatusConflict},
		{errors.New("carrier down"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		f := newFixture()
		f.calls.hangupErr = tc.err
		r := f.router("cg-1", rbac.RoleCaregiver)

		w := doJSON(r, http.MethodPost, "/v1/calls/CA123/hangup", "")
		if w.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestListCalls(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodGet, "/v1/calls?recipient_id=rec-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "call-1") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListCalls_RequiresRecipientID(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodGet, "/v1/calls", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListNotifications(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodGet, "/v1/notifications", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "n-1") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMarkNotificationRead(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/notifications/n-1/read", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(f.notifs.read) != 1 || f.notifs.read[0] != "n-1" {
		t.Errorf("read = %v", f.notifs.read)
	}
}

func TestMarkNotificationRead_NotFound(t *testing.T) {
	f := newFixture()
	f.notifs.readErr = notify.ErrNotFound
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/notifications/nope/read", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAuditRecordsCallActions(t *testing.T) {
	f := newFixture()
	repo := audit.NewMemoryRepo()
	f.handlers.Audit = audit.NewService(repo)
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodPost, "/v1/calls/test", `{"recipient_id":"rec-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("test call status = %d, body = %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodPost, "/v1/calls/CA123/hangup", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("hangup status = %d, body = %s", w.Code, w.Body.String())
	}

	events := repo.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != audit.EventTypeManualCall || events[0].RecipientID != "rec-1" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != audit.EventTypeHangup || events[1].CallSID != "CA123" {
		t.Errorf("second event = %+v", events[1])
	}
	for _, e := range events {
		if e.ActorUserID != "u-1" || e.CaregiverID != "cg-1" {
			t.Errorf("actor fields = %+v", e)
		}
	}
}

func TestListMemories(t *testing.T) {
	f := newFixture()
	r := f.router("cg-1", rbac.RoleCaregiver)

	w := doJSON(r, http.MethodGet, "/v1/recipients/rec-1/memories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "m-1") {
		t.Errorf("body = %s", w.Body.String())
	}
}
