package decision

import (
	"fmt"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

// ClassifySeverity maps a join count to a tier. The rate is always normalized
// by the configured join window.
func ClassifySeverity(joinCount int, settings *config.RaidProtectionSettings) models.Severity {
	windowSec := float64(settings.JoinTimeWindowMs) / 1000
	if windowSec <= 0 {
		return models.SeverityLow
	}
	rate := float64(joinCount) / windowSec
	threshold := float64(settings.JoinThreshold) / windowSec

	switch {
	case rate >= 2*threshold:
		return models.SeveritySevere
	case rate >= threshold:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// ClassifyWindow classifies joins counted over window, which must be the
// settings' join window.
func ClassifyWindow(joinCount int, window time.Duration, settings *config.RaidProtectionSettings) (models.Severity, error) {
	if window != settings.JoinWindow() {
		return models.SeverityLow, fmt.Errorf("join window %s does not match configured window %s", window, settings.JoinWindow())
	}
	return ClassifySeverity(joinCount, settings), nil
}

// JoinRate is joins per second over the configured window.
func JoinRate(joinCount int, settings *config.RaidProtectionSettings) float64 {
	windowSec := float64(settings.JoinTimeWindowMs) / 1000
	if windowSec <= 0 {
		return 0
	}
	return float64(joinCount) / windowSec
}
