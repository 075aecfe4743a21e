package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/praxislabs/foresight/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("strategy_type", validateStrategyType); err != nil {
		panic(fmt.Sprintf("failed to register strategy_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("feedback_kind", validateFeedbackKind); err != nil {
		panic(fmt.Sprintf("failed to register feedback_kind validator: %v", err))
	}
	if err := Validate.RegisterValidation("report_period", validateReportPeriod); err != nil {
		panic(fmt.Sprintf("failed to register report_period validator: %v", err))
	}
}

// validateStrategyType validates that a string is a valid StrategyType enum value
func validateStrategyType(fl validator.FieldLevel) bool {
	switch models.StrategyType(fl.Field().String()) {
	case models.StrategyPattern, models.StrategyCluster, models.StrategyContextual,
		models.StrategyHistorical, models.StrategySequence, models.StrategyTemporal,
		models.StrategyBehavioral:
		return true
	default:
		return false
	}
}

// validateFeedbackKind validates that a string is a valid FeedbackKind enum value
func validateFeedbackKind(fl validator.FieldLevel) bool {
	switch models.FeedbackKind(fl.Field().String()) {
	case models.FeedbackImplicit, models.FeedbackExplicit:
		return true
	default:
		return false
	}
}

// validateReportPeriod validates that a string is a valid ReportPeriod enum value
func validateReportPeriod(fl validator.FieldLevel) bool {
	switch models.ReportPeriod(fl.Field().String()) {
	case models.ReportDaily, models.ReportWeekly:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateRating checks an explicit feedback rating is on the 1-5 scale
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("invalid rating: %d (must be 1-5)", rating)
	}
	return nil
}

// ValidateReportPeriod validates a ReportPeriod string value
func ValidateReportPeriod(value string) error {
	switch models.ReportPeriod(value) {
	case models.ReportDaily, models.ReportWeekly:
		return nil
	default:
		return fmt.Errorf("invalid period: %s (must be 'daily' or 'weekly')", value)
	}
}
