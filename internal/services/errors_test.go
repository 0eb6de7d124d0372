package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelgen/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "stitch", "concat", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"stitch", "concat", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrAuth, "platform", "token", "", nil), "auth"},
		{services.Wrap(services.ErrTimeout, "veo", "poll", "", nil), "timeout"},
		{services.Wrap(services.ErrDecode, "veo", "extract", "", nil), "decode"},
		{services.Wrap(services.ErrConfiguration, "config", "", "", nil), "validation"},
		{errors.New("plain"), "failed"},
	}
	for _, tc := range cases {
		if got := services.FailureKind(tc.err); got != tc.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsFatalOnlyForAuth(t *testing.T) {
	if !services.IsFatal(services.Wrap(services.ErrAuth, "platform", "token", "", nil)) {
		t.Fatal("expected auth errors to be fatal")
	}
	if services.IsFatal(services.Wrap(services.ErrTimeout, "veo", "poll", "", nil)) {
		t.Fatal("expected timeout errors to be beat-local")
	}
}
