package detectors

import (
	"slices"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
)

// IsExempt reports whether raid protection should leave the member alone.
func IsExempt(m models.Member, settings *config.RaidProtectionSettings) bool {
	if m.Administrator {
		return true
	}
	return slices.ContainsFunc(m.RoleIDs, settings.IsExemptRole)
}

// IsSuspiciousNewAccount reports whether the account is younger than the
// configured minimum age. An unknown creation time is never suspicious.
func IsSuspiciousNewAccount(m models.Member, settings *config.RaidProtectionSettings, now time.Time) bool {
	if settings.AccountAgeDaysMin <= 0 || m.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(m.CreatedAt) < settings.MinAccountAge()
}
