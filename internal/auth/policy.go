package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"printer-fieldops/internal/model"
)

const MinPasswordLength = 12

// PasswordSymbols is the accepted special-character set.
const PasswordSymbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

// ValidatePassword enforces the policy in rule order and reports every violation.
func ValidatePassword(password string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, r):
			hasSymbol = true
		}
	}

	violations := make([]model.PasswordRule, 0, 5)
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, model.RuleMinLength)
	}
	if !hasUpper {
		violations = append(violations, model.RuleUppercase)
	}
	if !hasLower {
		violations = append(violations, model.RuleLowercase)
	}
	if !hasDigit {
		violations = append(violations, model.RuleDigit)
	}
	if !hasSymbol {
		violations = append(violations, model.RuleSymbol)
	}

	if len(violations) == 0 {
		return nil
	}
	return &model.WeakPasswordError{Rule: violations[0], Rules: violations}
}
