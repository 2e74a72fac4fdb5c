package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// dbStore satisfies the service store contracts with the real repo.
type dbStore struct{}

func (dbStore) GetCredential(ctx context.Context, db *gorm.DB, slot string) (*domain.Credential, error) {
	return repo.GetCredential(ctx, db, slot)
}
func (dbStore) ReplaceCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	return repo.ReplaceCredential(ctx, db, c)
}
func (dbStore) ListPendingPush(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListPendingPush(ctx, db)
}
func (dbStore) IsPushed(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.IsPushed(ctx, db, id)
}
func (dbStore) MarkPushed(ctx context.Context, db *gorm.DB, id uint, q float64) (bool, error) {
	return repo.MarkPushed(ctx, db, id, q)
}
func (dbStore) InsertEmailIfAbsent(ctx context.Context, db *gorm.DB, in domain.InboundEmail) (*domain.Email, bool, error) {
	return repo.InsertEmailIfAbsent(ctx, db, in)
}
func (dbStore) ListEmails(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListEmails(ctx, db)
}
func (dbStore) ListUnsummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListUnsummarized(ctx, db)
}
func (dbStore) ListSummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListSummarized(ctx, db)
}
func (dbStore) SummariesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.SummariesStats(ctx, db)
}
func (dbStore) GetEmail(ctx context.Context, db *gorm.DB, id uint) (*domain.Email, error) {
	return repo.GetEmail(ctx, db, id)
}
func (dbStore) SetAnnotation(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	return repo.SetAnnotation(ctx, db, id, a)
}
func (dbStore) UpdateSummary(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	return repo.UpdateSummary(ctx, db, id, a)
}
func (dbStore) AcquireLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	return repo.AcquireLease(ctx, db, name, holder, ttl, now)
}
func (dbStore) RenewLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	return repo.RenewLease(ctx, db, name, holder, ttl, now)
}
func (dbStore) ReleaseLease(ctx context.Context, db *gorm.DB, name, holder string) error {
	return repo.ReleaseLease(ctx, db, name, holder)
}
func (dbStore) GetSyncRunByKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.SyncRun, error) {
	return repo.GetSyncRunByKey(ctx, db, key, now)
}
func (dbStore) CreateSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun, now time.Time) error {
	return repo.CreateSyncRun(ctx, db, run, now)
}
func (dbStore) CountSyncRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountSyncRuns(ctx, db)
}
func (dbStore) ListSyncRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.SyncRun, error) {
	return repo.ListSyncRunsPage(ctx, db, offset, limit)
}

// fakeClio records submitted entries and rejects the notes listed in reject.
type fakeClio struct {
	mu      sync.Mutex
	entries []clio.TimeEntry
	tokens  []string
	reject  map[string]int
}

func (f *fakeClio) CreateTimeEntry(_ context.Context, tok string, e clio.TimeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tok)
	if code, ok := f.reject[e.Note]; ok {
		return &clio.ProviderError{StatusCode: code, Body: "rejected"}
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeAuth struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (f *fakeAuth) AuthCodeURL() string { return "https://clio.test/oauth/authorize?client_id=cid" }
func (f *fakeAuth) ExchangeCode(context.Context, string) (*oauth2.Token, error) {
	f.calls++
	return f.tok, f.err
}

func strp(s string) *string        { return &s }
func f64p(f float64) *float64      { return &f }
func timep(t time.Time) *time.Time { return &t }

// seedAnnotated inserts an annotated email and returns its id.
func seedAnnotated(t *testing.T, db *gorm.DB, gmailID, summary string, hours *float64, desc *string, sent *time.Time) uint {
	t.Helper()
	e := &domain.Email{
		GmailID:            gmailID,
		Subject:            "subject " + gmailID,
		DateSent:           sent,
		Summary:            strp(summary),
		BillingHours:       hours,
		BillingDescription: desc,
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("seed email: %v", err)
	}
	return e.ID
}

func storeClioToken(t *testing.T, db *gorm.DB, access string) {
	t.Helper()
	if err := repo.ReplaceCredential(context.Background(), db, &domain.Credential{Slot: domain.SlotClio, AccessToken: access}); err != nil {
		t.Fatalf("store credential: %v", err)
	}
}

func pushedFlag(t *testing.T, db *gorm.DB, id uint) bool {
	t.Helper()
	p, err := repo.IsPushed(context.Background(), db, id)
	if err != nil {
		t.Fatalf("is pushed: %v", err)
	}
	return p
}
