// Package app assembles the application services from configuration and a
// database handle. The HTTP server and the CLI commands share it.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/integrations/gmail"
	"github.com/tbourn/legal-billing-backend/internal/integrations/openai"
	"github.com/tbourn/legal-billing-backend/internal/repo"
	"github.com/tbourn/legal-billing-backend/internal/services"
)

// repoShim adapts the repository free functions to the store interfaces
// the services expect.
type repoShim struct{}

func (repoShim) GetCredential(ctx context.Context, db *gorm.DB, slot string) (*domain.Credential, error) {
	return repo.GetCredential(ctx, db, slot)
}

func (repoShim) ReplaceCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	return repo.ReplaceCredential(ctx, db, c)
}

func (repoShim) ListPendingPush(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListPendingPush(ctx, db)
}

func (repoShim) IsPushed(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	return repo.IsPushed(ctx, db, id)
}

func (repoShim) MarkPushed(ctx context.Context, db *gorm.DB, id uint, quantity float64) (bool, error) {
	return repo.MarkPushed(ctx, db, id, quantity)
}

func (repoShim) InsertEmailIfAbsent(ctx context.Context, db *gorm.DB, in domain.InboundEmail) (*domain.Email, bool, error) {
	return repo.InsertEmailIfAbsent(ctx, db, in)
}

func (repoShim) ListEmails(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListEmails(ctx, db)
}

func (repoShim) ListUnsummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListUnsummarized(ctx, db)
}

func (repoShim) ListSummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error) {
	return repo.ListSummarized(ctx, db)
}

func (repoShim) SummariesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.SummariesStats(ctx, db)
}

func (repoShim) GetEmail(ctx context.Context, db *gorm.DB, id uint) (*domain.Email, error) {
	return repo.GetEmail(ctx, db, id)
}

func (repoShim) SetAnnotation(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	return repo.SetAnnotation(ctx, db, id, a)
}

func (repoShim) UpdateSummary(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error) {
	return repo.UpdateSummary(ctx, db, id, a)
}

func (repoShim) AcquireLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	return repo.AcquireLease(ctx, db, name, holder, ttl, now)
}

func (repoShim) RenewLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error {
	return repo.RenewLease(ctx, db, name, holder, ttl, now)
}

func (repoShim) ReleaseLease(ctx context.Context, db *gorm.DB, name, holder string) error {
	return repo.ReleaseLease(ctx, db, name, holder)
}

func (repoShim) GetSyncRunByKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.SyncRun, error) {
	return repo.GetSyncRunByKey(ctx, db, key, now)
}

func (repoShim) CreateSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun, now time.Time) error {
	return repo.CreateSyncRun(ctx, db, run, now)
}

func (repoShim) CountSyncRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountSyncRuns(ctx, db)
}

func (repoShim) ListSyncRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.SyncRun, error) {
	return repo.ListSyncRunsPage(ctx, db, offset, limit)
}

// Services holds every application service built for one process.
type Services struct {
	DB          *gorm.DB
	Credentials *services.CredentialService
	Connection  *services.ConnectionService
	Sync        *services.SyncService
	Mailbox     *services.MailboxService
	Summaries   *services.SummaryService
}

// Option adjusts the collaborators New builds.
type Option func(*options)

type options struct {
	clio   []clio.Option
	gmail  []gmail.Option
	openai []openai.Option
}

// WithClioOptions passes options to the billing client.
func WithClioOptions(opts ...clio.Option) Option {
	return func(o *options) { o.clio = append(o.clio, opts...) }
}

// WithGmailOptions passes options to the mailbox client.
func WithGmailOptions(opts ...gmail.Option) Option {
	return func(o *options) { o.gmail = append(o.gmail, opts...) }
}

// WithOpenAIOptions passes options to the model client.
func WithOpenAIOptions(opts ...openai.Option) Option {
	return func(o *options) { o.openai = append(o.openai, opts...) }
}

// New builds the services. A missing Google client secret or OpenAI key
// leaves that feature unconfigured; its operations then fail with a
// ConfigurationError. An unreadable client secret is an error.
func New(cfg config.Config, db *gorm.DB, opts ...Option) (*Services, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cc := clio.NewClient(cfg.Clio, o.clio...)
	creds := services.NewCredentialService(db, repoShim{}, cc, cfg.Clio)

	sync := services.NewSyncService(db, repoShim{}, creds, cc)
	if cfg.SyncLockTTL > 0 {
		sync.LeaseTTL = cfg.SyncLockTTL
	}
	if cfg.IdempotencyTTL > 0 {
		sync.IdempotencyTTL = cfg.IdempotencyTTL
	}

	mailbox := &services.MailboxService{DB: db, Creds: repoShim{}, Emails: repoShim{}}
	gc, err := gmail.NewClient(cfg.Google, o.gmail...)
	switch {
	case err == nil:
		mailbox.Mail = gc
	case errors.Is(err, gmail.ErrNoClientSecret):
		log.Warn().Str("file", cfg.Google.ClientSecretFile).Msg("gmail import disabled: client secret file not found")
	default:
		return nil, err
	}

	summaries := &services.SummaryService{DB: db, Repo: repoShim{}}
	if cfg.OpenAI.APIKey != "" {
		oc, err := openai.NewClient(cfg.OpenAI, o.openai...)
		if err != nil {
			return nil, err
		}
		summaries.Annotator = oc
	} else {
		log.Warn().Msg("summary generation disabled: OPENAI_API_KEY not set")
	}

	return &Services{
		DB:          db,
		Credentials: creds,
		Connection:  &services.ConnectionService{Creds: creds, Reader: cc},
		Sync:        sync,
		Mailbox:     mailbox,
		Summaries:   summaries,
	}, nil
}

// RunRecorded reports whether an unexpired sync run was stored under key.
func (s *Services) RunRecorded(ctx context.Context, key string, now time.Time) (bool, error) {
	_, err := repo.GetSyncRunByKey(ctx, s.DB, key, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}
