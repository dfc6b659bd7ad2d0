package policy

import (
	"errors"
	"strings"
)

var ErrContentPolicyViolation = errors.New("content policy violation")

const maxReviewLength = 2000

type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Evaluation struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`
}

type PolicyViolationError struct {
	Violations []Violation
}

func (e *PolicyViolationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrContentPolicyViolation.Error()
	}
	return "content policy violation: " + e.Violations[0].Message
}

func (e *PolicyViolationError) Unwrap() error {
	return ErrContentPolicyViolation
}

// EnforceReviewPolicy rejects review text that breaks platform rules.
// Sanitization (MaskContactInfo) runs separately; this gate covers the
// cases masking cannot fix.
func EnforceReviewPolicy(text string) error {
	evaluation := EvaluateReviewText(text)
	if evaluation.Allowed {
		return nil
	}
	return &PolicyViolationError{Violations: evaluation.Violations}
}

func EvaluateReviewText(text string) Evaluation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Evaluation{Allowed: true}
	}

	violations := make([]Violation, 0, 2)
	if len(trimmed) > maxReviewLength {
		violations = append(violations, Violation{
			Code:    "review_too_long",
			Message: "review text exceeds the allowed length",
		})
	}

	content := strings.ToLower(trimmed)
	for _, token := range blockedKeywords {
		if strings.Contains(content, token) {
			violations = append(violations, Violation{
				Code:    "off_platform_solicitation",
				Message: "review text solicits payment or contact outside the platform",
			})
			break
		}
	}

	if len(violations) == 0 {
		return Evaluation{Allowed: true}
	}

	return Evaluation{
		Allowed:    false,
		Violations: dedupeViolations(violations),
	}
}

// Steering payment or hiring off the platform skips fee collection and
// the settlement guarantees that come with it.
var blockedKeywords = []string{
	"pay me directly",
	"pay cash directly",
	"venmo me",
	"cash app me",
	"zelle me",
	"skip the app",
	"off the app",
	"off the books",
	"text me directly",
	"call me directly",
}

func dedupeViolations(values []Violation) []Violation {
	seen := make(map[string]struct{}, len(values))
	result := make([]Violation, 0, len(values))
	for _, value := range values {
		key := value.Code + "|" + value.Message
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, value)
	}
	return result
}
