// Package authoring handles administrative script saves, including the
// monthly-quota-gated obfuscation transform.
package authoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scriptguard/internal/encoder"
	"github.com/scriptguard/internal/metrics"
	"github.com/scriptguard/pkg/models"
)

// Monthly obfuscation limits per tier. Unknown tiers fall back to free.
var tierLimits = map[string]int{
	models.TierFree:       10,
	models.TierPro:        50,
	models.TierEnterprise: 150,
}

// LimitForTier returns the monthly obfuscation allowance of a tier.
func LimitForTier(tier string) int {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return tierLimits[models.TierFree]
}

// EffectiveTier maps an absent or unknown tier to free, matching the
// limit fallback so callers report the tier they are actually billed as.
func EffectiveTier(tier string) string {
	if _, ok := tierLimits[tier]; ok {
		return tier
	}
	return models.TierFree
}

// Period returns the calendar-month quota token for a point in time.
func Period(t time.Time) string { return t.UTC().Format("2006-01") }

// QuotaExceededError is the caller-visible rejection of an obfuscation
// request over the monthly allowance.
type QuotaExceededError struct {
	Tier  string
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("obfuscation limit reached for %s tier (%d/mo)", e.Tier, e.Limit)
}

// Store is the persistence slice the authoring path needs.
type Store interface {
	QuotaCount(ctx context.Context, accountID int64, period string) (int, error)
	UpsertScript(ctx context.Context, productID int64, content string, isObfuscated bool) (*models.Script, error)
	SaveObfuscatedScript(ctx context.Context, accountID int64, period string, limit int, productID int64, content string) (*models.Script, bool, error)
}

// Service performs script saves on behalf of an authenticated account.
type Service struct {
	store Store
	obf   encoder.Encoder
	now   func() time.Time
}

func NewService(store Store, obf encoder.Encoder) *Service {
	return &Service{store: store, obf: obf, now: time.Now}
}

// SaveScript upserts the script of a product. When obfuscate is set,
// the quota increment and the script write commit as one unit: a
// rejected attempt consumes nothing and leaves the script untouched,
// and a failed write never leaves the counter charging for a transform
// that was not applied.
func (s *Service) SaveScript(ctx context.Context, account *models.Account, productID int64, content string, obfuscate bool) (*models.Script, error) {
	if !obfuscate {
		return s.store.UpsertScript(ctx, productID, content, false)
	}

	tier := EffectiveTier(account.Tier)
	limit := LimitForTier(tier)
	period := Period(s.now())

	script, ok, err := s.store.SaveObfuscatedScript(ctx, account.ID, period, limit, productID, s.obf.Encode(content))
	if err != nil {
		return nil, fmt.Errorf("save obfuscated script: %w", err)
	}
	if !ok {
		metrics.ObfuscationRejections.WithLabelValues(tier).Inc()
		return nil, &QuotaExceededError{Tier: tier, Limit: limit}
	}

	log.Info().
		Int64("account_id", account.ID).
		Int64("product_id", productID).
		Str("period", period).
		Msg("obfuscated script saved")
	return script, nil
}

// QuotaStatus reports the account's current monthly usage and limit.
func (s *Service) QuotaStatus(ctx context.Context, account *models.Account) (used, limit int, err error) {
	limit = LimitForTier(EffectiveTier(account.Tier))
	used, err = s.store.QuotaCount(ctx, account.ID, Period(s.now()))
	if err != nil {
		return 0, 0, fmt.Errorf("get quota count: %w", err)
	}
	return used, limit, nil
}
