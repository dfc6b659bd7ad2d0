package policy

import (
	"errors"
	"strings"
	"testing"
)

func TestMaskContactInfoMasksCommonPatterns(t *testing.T) {
	masked := MaskContactInfo("great work, email me at user@example.com or call 216-555-0188")

	if strings.Contains(masked, "user@example.com") {
		t.Fatalf("expected email to be masked, got %q", masked)
	}
	if strings.Contains(masked, "216-555-0188") {
		t.Fatalf("expected phone to be masked, got %q", masked)
	}
	if !strings.Contains(masked, "[email_redacted]") || !strings.Contains(masked, "[phone_redacted]") {
		t.Fatalf("expected redaction markers, got %q", masked)
	}
}

func TestMaskContactInfoKeepsPlainText(t *testing.T) {
	text := "driveway was cleared fast, sidewalk too"
	if masked := MaskContactInfo(text); masked != text {
		t.Fatalf("expected text unchanged, got %q", masked)
	}
}

func TestMaskContactInfoMasksCardNumbers(t *testing.T) {
	masked := MaskContactInfo("charged card 4111 1111 1111 1111 twice")
	if strings.Contains(masked, "4111 1111 1111") {
		t.Fatalf("expected card number to be masked, got %q", masked)
	}
	if !strings.Contains(masked, "1111") {
		t.Fatalf("expected last four digits to survive, got %q", masked)
	}
}

func TestEnforceReviewPolicyBlocksOffPlatformSolicitation(t *testing.T) {
	err := EnforceReviewPolicy("nice guy, next time just Venmo me and skip the app")
	if err == nil {
		t.Fatalf("expected solicitation to be blocked")
	}
	if !errors.Is(err, ErrContentPolicyViolation) {
		t.Fatalf("expected ErrContentPolicyViolation, got %v", err)
	}

	var violation *PolicyViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected PolicyViolationError, got %T", err)
	}
	if violation.Violations[0].Code != "off_platform_solicitation" {
		t.Fatalf("unexpected violation code %q", violation.Violations[0].Code)
	}
}

func TestEnforceReviewPolicyRejectsOversizedText(t *testing.T) {
	err := EnforceReviewPolicy(strings.Repeat("snow ", 500))
	if !errors.Is(err, ErrContentPolicyViolation) {
		t.Fatalf("expected oversized review to be rejected, got %v", err)
	}
}

func TestEnforceReviewPolicyAllowsOrdinaryReviews(t *testing.T) {
	if err := EnforceReviewPolicy("showed up on time, driveway and walkway spotless"); err != nil {
		t.Fatalf("expected ordinary review to pass, got %v", err)
	}
	if err := EnforceReviewPolicy(""); err != nil {
		t.Fatalf("expected empty review to pass, got %v", err)
	}
}
