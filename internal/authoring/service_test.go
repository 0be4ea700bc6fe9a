package authoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptguard/internal/encoder"
	"github.com/scriptguard/pkg/models"
)

// fakeStore mirrors the SQL layer's contract: the quota increment and
// the script write succeed or fail as one unit per (account, period).
type fakeStore struct {
	mu        sync.Mutex
	quota     map[string]int // accountID|period -> count
	scripts   map[int64]*models.Script
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{quota: map[string]int{}, scripts: map[int64]*models.Script{}}
}

func quotaKey(accountID int64, period string) string {
	return fmt.Sprintf("%d#%s", accountID, period)
}

func (f *fakeStore) QuotaCount(_ context.Context, accountID int64, period string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quota[quotaKey(accountID, period)], nil
}

func (f *fakeStore) UpsertScript(_ context.Context, productID int64, content string, isObfuscated bool) (*models.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.scripts[productID] = &models.Script{ProductID: productID, Content: content, IsObfuscated: isObfuscated}
	return f.scripts[productID], nil
}

func (f *fakeStore) SaveObfuscatedScript(_ context.Context, accountID int64, period string, limit int, productID int64, content string) (*models.Script, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := quotaKey(accountID, period)
	if f.quota[key] >= limit {
		return nil, false, nil
	}
	if f.upsertErr != nil {
		// the real store rolls the increment back with the transaction
		return nil, false, f.upsertErr
	}
	f.quota[key]++
	f.scripts[productID] = &models.Script{ProductID: productID, Content: content, IsObfuscated: true}
	return f.scripts[productID], true, nil
}

func newTestService(store *fakeStore) *Service {
	svc := NewService(store, encoder.NewObfuscator())
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestLimitForTier(t *testing.T) {
	assert.Equal(t, 10, LimitForTier(models.TierFree))
	assert.Equal(t, 50, LimitForTier(models.TierPro))
	assert.Equal(t, 150, LimitForTier(models.TierEnterprise))
	assert.Equal(t, 10, LimitForTier("mystery"), "unknown tiers fall back to free")
}

func TestEffectiveTier(t *testing.T) {
	assert.Equal(t, models.TierPro, EffectiveTier(models.TierPro))
	assert.Equal(t, models.TierFree, EffectiveTier(""))
	assert.Equal(t, models.TierFree, EffectiveTier("mystery"))
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2025-06", Period(time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2025-07", Period(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSaveScriptPlainBypassesQuota(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierFree}

	script, err := svc.SaveScript(context.Background(), acct, 7, `print("v1")`, false)
	require.NoError(t, err)
	assert.False(t, script.IsObfuscated)
	assert.Equal(t, `print("v1")`, script.Content)

	used, _, err := svc.QuotaStatus(context.Background(), acct)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestSaveScriptObfuscatesAndCounts(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierFree}

	script, err := svc.SaveScript(context.Background(), acct, 7, `print("secret")`, true)
	require.NoError(t, err)
	assert.True(t, script.IsObfuscated)
	assert.Contains(t, script.Content, "loadstring")
	assert.NotContains(t, script.Content, `print("secret")`)

	used, limit, err := svc.QuotaStatus(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
	assert.Equal(t, 10, limit)
}

func TestSaveScriptQuotaExceeded(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierFree}

	for i := 0; i < 10; i++ {
		_, err := svc.SaveScript(context.Background(), acct, 7, "x = 1", true)
		require.NoError(t, err)
	}

	_, err := svc.SaveScript(context.Background(), acct, 7, "x = 2", true)
	var qerr *QuotaExceededError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, models.TierFree, qerr.Tier)
	assert.Equal(t, 10, qerr.Limit)

	used, _, err := svc.QuotaStatus(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, 10, used, "a rejected attempt must not increment")
}

func TestSaveScriptFailedWriteDoesNotConsumeQuota(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("connection reset")
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierFree}

	_, err := svc.SaveScript(context.Background(), acct, 7, "x = 1", true)
	require.Error(t, err)

	store.upsertErr = nil
	used, _, err := svc.QuotaStatus(context.Background(), acct)
	require.NoError(t, err)
	assert.Zero(t, used, "no transform was applied, so none may be counted")
}

func TestSaveScriptUpsertKeepsSingleRow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierPro}

	_, err := svc.SaveScript(context.Background(), acct, 7, "first", false)
	require.NoError(t, err)
	_, err = svc.SaveScript(context.Background(), acct, 7, "second", false)
	require.NoError(t, err)

	assert.Len(t, store.scripts, 1)
	assert.Equal(t, "second", store.scripts[7].Content)
}

func TestSaveScriptConcurrentQuotaExactness(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	acct := &models.Account{ID: 1, Tier: models.TierFree} // limit 10

	const attempts = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SaveScript(context.Background(), acct, 7, "x = 1", true)
			mu.Lock()
			defer mu.Unlock()
			var qerr *QuotaExceededError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &qerr):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded, "exactly the limit succeeds")
	assert.Equal(t, attempts-10, rejected)

	used, _, err := svc.QuotaStatus(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, 10, used)
}
