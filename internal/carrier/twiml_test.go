package carrier

import (
	"strings"
	"testing"
)

func TestRenderStreamTwiML(t *testing.T) {
	out, err := RenderStreamTwiML("wss://example.com/media-stream/CA123", []StreamParameter{
		{Name: "recipient_name", Value: "Rose"},
		{Name: "context", Value: "Prefers mornings. Loves gardening & birds."},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		`<Connect>`,
		`<Stream url="wss://example.com/media-stream/CA123">`,
		`<Parameter name="recipient_name" value="Rose">`,
		`gardening &amp; birds`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("twiml missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStreamTwiML_RequiresURL(t *testing.T) {
	if _, err := RenderStreamTwiML("  ", nil); err == nil {
		t.Fatal("expected error for empty stream url")
	}
}

func TestRenderSMSReplyTwiML(t *testing.T) {
	out, err := RenderSMSReplyTwiML("Reply STOP to unsubscribe.")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "<Message>Reply STOP to unsubscribe.</Message>") {
		t.Errorf("missing message verb:\n%s", out)
	}
}

func TestRenderSMSReplyTwiML_EmptyBody(t *testing.T) {
	out, err := RenderSMSReplyTwiML("")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(out, "<Message") {
		t.Errorf("empty body must render no message verb:\n%s", out)
	}
	if !strings.Contains(out, "<Response") {
		t.Errorf("expected response envelope:\n%s", out)
	}
}
