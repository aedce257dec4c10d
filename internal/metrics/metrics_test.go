package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/diaries":                         "/diaries",
		"/diaries/42":                      "/diaries/{id}",
		"/diaries/42/":                     "/diaries/{id}/",
		"/diaries/{id}":                    "/diaries/{id}",
		"/uploads/{key}":                   "/uploads/{key}",
		"/api/users/me":                    "/api/users/me",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObservePasswordReset(t *testing.T) {
	before := testutil.ToFloat64(PasswordResetEvents.WithLabelValues("issued"))
	ObservePasswordReset("issued")
	after := testutil.ToFloat64(PasswordResetEvents.WithLabelValues("issued"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestAddResetTokensPurged_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(ResetTokensPurged)
	AddResetTokensPurged(0)
	AddResetTokensPurged(3)
	if got := testutil.ToFloat64(ResetTokensPurged) - before; got != 3 {
		t.Errorf("expected +3, got %v", got)
	}
}
