package store

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/scriptguard/internal/database"
	"github.com/scriptguard/pkg/models"
)

// getDatabaseURL attempts to read DATABASE_URL from env or .env file (best effort).
func getDatabaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	f, err := os.Open(".env")
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "DATABASE_URL=") {
			return strings.Trim(strings.TrimPrefix(line, "DATABASE_URL="), "\"'")
		}
	}
	return ""
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := getDatabaseURL()
	if dsn == "" {
		t.Skip("DATABASE_URL not set (skipping DB-backed storage test)")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	for _, table := range []string{"execution_logs", "quota_records", "invites", "scripts", "licenses", "hwid_bans", "products", "accounts"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
	return db
}

func TestBanIdempotence(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	ban, err := store.Ban(ctx, "H-BAN", "cheating")
	if err != nil {
		t.Fatalf("ban: %v", err)
	}
	// banning again is a no-op success returning the original row
	again, err := store.Ban(ctx, "H-BAN", "again")
	if err != nil {
		t.Fatalf("re-ban: %v", err)
	}
	if again.ID != ban.ID {
		t.Fatalf("re-ban returned a different row: %d vs %d", again.ID, ban.ID)
	}
	if again.Reason == nil || *again.Reason != "cheating" {
		t.Fatalf("re-ban must keep the original reason, got %v", again.Reason)
	}

	banned, err := store.IsBanned(ctx, "H-BAN")
	if err != nil || !banned {
		t.Fatalf("expected banned, got %v err=%v", banned, err)
	}

	if err := store.Unban(ctx, "H-BAN"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if err := store.Unban(ctx, "H-BAN"); err != nil {
		t.Fatalf("re-unban: %v", err)
	}
	banned, _ = store.IsBanned(ctx, "H-BAN")
	if banned {
		t.Fatal("expected unbanned")
	}
}

func TestBindHwidIsConditional(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	product, err := store.CreateProduct(ctx, "Test Product", "", "1.0", true)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	lic, err := store.CreateLicense(ctx, "BIND-KEY", product.ID, models.LicenseStatusActive)
	if err != nil {
		t.Fatalf("create license: %v", err)
	}

	now := time.Now()
	won, err := store.BindHwid(ctx, lic.ID, "H1", "1.1.1.1", now)
	if err != nil || !won {
		t.Fatalf("first bind should win: won=%v err=%v", won, err)
	}
	won, err = store.BindHwid(ctx, lic.ID, "H2", "2.2.2.2", now)
	if err != nil {
		t.Fatalf("second bind: %v", err)
	}
	if won {
		t.Fatal("second bind must lose while bound")
	}

	got, err := store.GetLicenseByKey(ctx, "BIND-KEY")
	if err != nil || got == nil || got.BoundHwid == nil || *got.BoundHwid != "H1" {
		t.Fatalf("unexpected binding: %+v err=%v", got, err)
	}

	if _, err := store.ResetBinding(ctx, lic.ID); err != nil {
		t.Fatalf("reset binding: %v", err)
	}
	won, err = store.BindHwid(ctx, lic.ID, "H2", "2.2.2.2", now)
	if err != nil || !won {
		t.Fatalf("bind after reset should win: won=%v err=%v", won, err)
	}
}

func TestQuotaExactnessUnderConcurrency(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, "quota@example.com", "x", models.TierFree, false)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	product, err := store.CreateProduct(ctx, "Quota Product", "", "1.0", true)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	const limit = 10
	const attempts = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.SaveObfuscatedScript(ctx, acct.ID, "2025-06", limit, product.ID, "x = 1")
			if err != nil {
				t.Errorf("save: %v", err)
				return
			}
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("expected exactly %d admitted, got %d", limit, admitted)
	}
	count, err := store.QuotaCount(ctx, acct.ID, "2025-06")
	if err != nil || count != limit {
		t.Fatalf("final count = %d err=%v, want %d", count, err, limit)
	}

	// A different period starts from zero.
	count, _ = store.QuotaCount(ctx, acct.ID, "2025-07")
	if count != 0 {
		t.Fatalf("fresh period should be 0, got %d", count)
	}
}

func TestObfuscatedSaveRollsBackQuotaOnFailedWrite(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, "rollback@example.com", "x", models.TierFree, false)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	// No such product, so the script write violates its foreign key and
	// the transaction rolls back, increment included.
	if _, _, err := store.SaveObfuscatedScript(ctx, acct.ID, "2025-06", 10, 999999, "x = 1"); err == nil {
		t.Fatal("expected the script write to fail")
	}

	count, err := store.QuotaCount(ctx, acct.ID, "2025-06")
	if err != nil {
		t.Fatalf("quota count: %v", err)
	}
	if count != 0 {
		t.Fatalf("quota counted a transform that was not applied: %d", count)
	}
}

func TestInviteRedeemExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, "redeemer@example.com", "x", models.TierFree, false)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	inv, err := store.CreateInvite(ctx, models.TierPro)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	tier, err := store.RedeemInvite(ctx, inv.Code, acct.ID)
	if err != nil || tier != models.TierPro {
		t.Fatalf("redeem: tier=%q err=%v", tier, err)
	}

	// Second redemption fails with the generic error and the tier stays.
	if _, err := store.RedeemInvite(ctx, inv.Code, acct.ID); !errors.Is(err, ErrInviteInvalid) {
		t.Fatalf("expected ErrInviteInvalid, got %v", err)
	}
	if _, err := store.RedeemInvite(ctx, "no-such-code", acct.ID); !errors.Is(err, ErrInviteInvalid) {
		t.Fatalf("expected ErrInviteInvalid for unknown code, got %v", err)
	}

	got, err := store.GetAccount(ctx, acct.ID)
	if err != nil || got == nil || got.Tier != models.TierPro {
		t.Fatalf("tier after double redeem: %+v err=%v", got, err)
	}
}

func TestUpsertScriptReplacesRow(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	product, err := store.CreateProduct(ctx, "Upsert Product", "", "1.0", true)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := store.UpsertScript(ctx, product.ID, "first", false); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := store.UpsertScript(ctx, product.ID, "second", true); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM scripts WHERE product_id = $1", product.ID).Scan(&rows); err != nil {
		t.Fatalf("count scripts: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 script row, got %d", rows)
	}

	got, err := store.GetScriptByProductID(ctx, product.ID)
	if err != nil || got == nil || got.Content != "second" || !got.IsObfuscated {
		t.Fatalf("unexpected script after upsert: %+v err=%v", got, err)
	}
}

func TestAppendLogIsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	store := NewStorage(db)
	ctx := context.Background()

	entry := &models.ExecutionLog{
		Status:    models.LogStatusInvalidKey,
		Hwid:      "H1",
		IPAddress: "1.2.3.4",
		Details:   "Invalid key attempt: NOPE",
	}
	if err := store.AppendLog(ctx, entry); err != nil {
		t.Fatalf("append log: %v", err)
	}
	if entry.ID == 0 || entry.ExecutedAt.IsZero() {
		t.Fatalf("expected id and timestamp back, got %+v", entry)
	}

	logs, err := store.ListLogs(ctx, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("list logs: n=%d err=%v", len(logs), err)
	}
	if logs[0].Status != models.LogStatusInvalidKey {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
}
