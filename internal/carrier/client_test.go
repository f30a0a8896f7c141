package carrier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carecall-platform/internal/config"
)

func testCarrierConfig() config.TwilioConfig {
	return config.TwilioConfig{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "secret",
		FromNumber: "+15550001111",
	}
}

func TestPlaceCall(t *testing.T) {
	var gotForm map[string][]string
	var gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		w.Write([]byte(`{"sid":"CA123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(testCarrierConfig(), config.AppConfig{PublicBaseURL: "https://care.example.com"}).
		WithAPIBase(srv.URL)

	sid, err := c.PlaceCall(context.Background(), "5551234567", "rec-1", "agent-1")
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if sid != "CA123" {
		t.Errorf("sid = %q, want CA123", sid)
	}
	if want := "/Accounts/AC00000000000000000000000000000000/Calls.json"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotUser != "AC00000000000000000000000000000000" {
		t.Errorf("basic auth user = %q", gotUser)
	}
	if got := gotForm["To"]; len(got) != 1 || got[0] != "+15551234567" {
		t.Errorf("To = %v, want normalized +15551234567", got)
	}
	if got := gotForm["Url"]; len(got) != 1 ||
		!strings.Contains(got[0], "/webhooks/twilio/voice?recipient_id=rec-1&agent_id=agent-1") {
		t.Errorf("voice url = %v", got)
	}
	if got := gotForm["StatusCallback"]; len(got) != 1 ||
		got[0] != "https://care.example.com/webhooks/twilio/status" {
		t.Errorf("status callback = %v", got)
	}
	if got := gotForm["StatusCallbackEvent"]; len(got) != 2 {
		t.Errorf("StatusCallbackEvent = %v, want completed and no-answer", got)
	}
}

func TestPlaceCall_CarrierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21219,"message":"number not verified","status":400}`))
	}))
	defer srv.Close()

	c := NewClient(testCarrierConfig(), config.AppConfig{PublicBaseURL: "https://care.example.com"}).
		WithAPIBase(srv.URL)

	_, err := c.PlaceCall(context.Background(), "+15551234567", "rec-1", "agent-1")
	if err == nil {
		t.Fatal("expected carrier error")
	}
	if !strings.Contains(err.Error(), "21219") {
		t.Errorf("error should carry carrier code: %v", err)
	}
}

func TestPlaceCall_InvalidDestination(t *testing.T) {
	c := NewClient(testCarrierConfig(), config.AppConfig{PublicBaseURL: "https://care.example.com"})
	if _, err := c.PlaceCall(context.Background(), "911", "rec-1", "agent-1"); err == nil {
		t.Fatal("expected destination validation error")
	}
}

func TestPlaceCall_SimulationMode(t *testing.T) {
	c := NewClient(config.TwilioConfig{}, config.AppConfig{PublicBaseURL: "https://care.example.com"})
	if !c.Simulated() {
		t.Fatal("client without credentials should be simulated")
	}
	sid, err := c.PlaceCall(context.Background(), "5551234567", "rec-1", "agent-1")
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if !strings.HasPrefix(sid, "SIM") {
		t.Errorf("simulated sid = %q, want SIM prefix", sid)
	}
}

func TestSendSMS_SimulationMode(t *testing.T) {
	c := NewClient(config.TwilioConfig{}, config.AppConfig{PublicBaseURL: "https://care.example.com"})
	sid, err := c.SendSMS(context.Background(), "5551234567", "hello")
	if err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if !strings.HasPrefix(sid, "SIMSMS") {
		t.Errorf("simulated sms sid = %q, want SIMSMS prefix", sid)
	}
}

func TestEndCall(t *testing.T) {
	var gotPath, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotPath = r.URL.Path
		gotStatus = r.PostForm.Get("Status")
		w.Write([]byte(`{"sid":"CA123","status":"completed"}`))
	}))
	defer srv.Close()

	c := NewClient(testCarrierConfig(), config.AppConfig{PublicBaseURL: "https://care.example.com"}).
		WithAPIBase(srv.URL)

	if err := c.EndCall(context.Background(), "CA123"); err != nil {
		t.Fatalf("EndCall: %v", err)
	}
	if want := "/Accounts/AC00000000000000000000000000000000/Calls/CA123.json"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotStatus != "completed" {
		t.Errorf("Status = %q, want completed", gotStatus)
	}
}
