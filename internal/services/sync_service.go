// Package services – SyncService
//
// This file implements the push of annotated, unsent emails to the billing
// system as time entries. A pass runs under a named database lease so two
// passes never overlap, and submits records strictly one at a time. The
// lease is renewed before every submission and the call is given less time
// than the renewed lease, so no other pass can take the lease over while a
// submission is in flight. A pass that finds its lease taken ends with
// ErrSyncInProgress. Each record is re-checked before submission and
// committed as pushed right after the provider accepts it, so a retried
// pass never resends a record whose flag was committed.
//
// Guarantee: at most once per successful provider call. If the provider
// accepts an entry and the pushed flag cannot be written, the pass fails
// with a store error and the record is resent by the next pass.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/repo"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

const (
	syncLeaseName      = "clio_push"
	maxDescriptionRune = 200

	msgNoToken    = "No Clio token found"
	msgNothingNew = "No summaries to push"
)

// SyncStore defines the repository contract required by SyncService.
type SyncStore interface {
	ListPendingPush(ctx context.Context, db *gorm.DB) ([]domain.Email, error)
	IsPushed(ctx context.Context, db *gorm.DB, id uint) (bool, error)
	MarkPushed(ctx context.Context, db *gorm.DB, id uint, quantity float64) (bool, error)

	AcquireLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error
	RenewLease(ctx context.Context, db *gorm.DB, name, holder string, ttl time.Duration, now time.Time) error
	ReleaseLease(ctx context.Context, db *gorm.DB, name, holder string) error

	GetSyncRunByKey(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.SyncRun, error)
	CreateSyncRun(ctx context.Context, db *gorm.DB, run *domain.SyncRun, now time.Time) error
	CountSyncRuns(ctx context.Context, db *gorm.DB) (int64, error)
	ListSyncRunsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.SyncRun, error)
}

// CredentialSource yields the stored billing credential, nil when absent.
type CredentialSource interface {
	Current(ctx context.Context) (*domain.Credential, error)
}

// TimeEntryClient submits one time entry.
type TimeEntryClient interface {
	CreateTimeEntry(ctx context.Context, accessToken string, e clio.TimeEntry) error
}

// PushResult is the outcome of one push pass.
type PushResult struct {
	Success     bool     `json:"success"`
	Connected   bool     `json:"-"`
	PushedCount int      `json:"pushed_count"`
	Errors      []string `json:"errors"`
	Message     string   `json:"message"`
	RunID       string   `json:"run_id,omitempty"`
	Replayed    bool     `json:"replayed,omitempty"`
}

// SyncService pushes pending time entries to the billing system.
type SyncService struct {
	DB    *gorm.DB
	Repo  SyncStore
	Creds CredentialSource
	Clio  TimeEntryClient

	// LeaseTTL bounds how long a crashed pass can block the next one.
	LeaseTTL time.Duration
	// IdempotencyTTL is how long an Idempotency-Key replays its run.
	IdempotencyTTL time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewSyncService wires a SyncService with default lease and key lifetimes.
func NewSyncService(db *gorm.DB, r SyncStore, creds CredentialSource, c TimeEntryClient) *SyncService {
	return &SyncService{
		DB:             db,
		Repo:           r,
		Creds:          creds,
		Clio:           c,
		LeaseTTL:       10 * time.Minute,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Push runs one pass without an idempotency key.
func (s *SyncService) Push(ctx context.Context) (*PushResult, error) {
	return s.PushIdempotent(ctx, "")
}

// PushIdempotent runs one pass. When key is non-empty and a run with the
// same key was recorded within IdempotencyTTL, that run is returned instead
// of pushing again.
//
// Per-record failures are reported in the result. Only store failures, a
// malformed credential or a held lease are returned as errors.
func (s *SyncService) PushIdempotent(ctx context.Context, key string) (*PushResult, error) {
	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "Push",
		trace.WithAttributes(attribute.Bool("idempotency.key_present", key != "")),
	)
	defer span.End()

	key = strings.TrimSpace(key)
	if key != "" {
		run, err := s.Repo.GetSyncRunByKey(ctx, s.DB, key, s.now())
		switch {
		case err == nil:
			syncRunsTotal.WithLabelValues("replayed").Inc()
			return resultFromRun(run), nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}

	started := s.now()
	res, err := s.pass(ctx)
	if err != nil {
		syncRunsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("sync.pushed", res.PushedCount),
		attribute.Int("sync.errors", len(res.Errors)),
	)

	run := &domain.SyncRun{
		Connected:   res.Connected,
		Success:     res.Success,
		PushedCount: res.PushedCount,
		Errors:      domain.StringList(res.Errors),
		Message:     res.Message,
		StartedAt:   started,
		FinishedAt:  s.now(),
	}
	if key != "" {
		exp := run.FinishedAt.Add(s.IdempotencyTTL)
		run.IdempotencyKey = &key
		run.KeyExpiresAt = &exp
	}
	if err := s.Repo.CreateSyncRun(ctx, s.DB, run, run.FinishedAt); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			if prior, gerr := s.Repo.GetSyncRunByKey(ctx, s.DB, key, s.now()); gerr == nil {
				return resultFromRun(prior), nil
			}
		}
		log.Warn().Err(err).Msg("sync: record run")
		return res, nil
	}
	res.RunID = run.ID
	return res, nil
}

// pass performs the lease-guarded push of every pending record.
func (s *SyncService) pass(ctx context.Context) (*PushResult, error) {
	cred, err := s.Creds.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		syncRunsTotal.WithLabelValues("not_connected").Inc()
		return &PushResult{Success: false, Errors: []string{}, Message: msgNoToken}, nil
	}

	holder := uuid.NewString()
	if err := s.Repo.AcquireLease(ctx, s.DB, syncLeaseName, holder, s.leaseTTL(), s.now()); err != nil {
		if errors.Is(err, repo.ErrLeaseHeld) {
			return nil, ErrSyncInProgress
		}
		return nil, err
	}
	defer func() {
		if rerr := s.Repo.ReleaseLease(context.WithoutCancel(ctx), s.DB, syncLeaseName, holder); rerr != nil {
			log.Warn().Err(rerr).Msg("sync: release lease")
		}
	}()

	pending, err := s.Repo.ListPendingPush(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		syncRunsTotal.WithLabelValues("empty").Inc()
		return &PushResult{Success: true, Connected: true, Errors: []string{}, Message: msgNothingNew}, nil
	}

	res := &PushResult{Success: true, Connected: true, Errors: []string{}}
	for i := range pending {
		e := &pending[i]

		pushed, err := s.Repo.IsPushed(ctx, s.DB, e.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if pushed {
			continue
		}

		callCtx, cancel, err := s.renewLease(ctx, holder)
		if err != nil {
			if errors.Is(err, repo.ErrLeaseHeld) {
				log.Warn().Uint("email_id", e.ID).Msg("sync: lease lost, ending pass")
				return nil, ErrSyncInProgress
			}
			return nil, fmt.Errorf("renew sync lease: %w", err)
		}
		entry := BuildTimeEntry(e)
		err = s.Clio.CreateTimeEntry(callCtx, cred.AccessToken, entry)
		cancel()
		if err != nil {
			timeEntriesTotal.WithLabelValues("rejected").Inc()
			res.Errors = append(res.Errors, fmt.Sprintf("%d: %s", e.ID, err.Error()))
			log.Warn().Err(err).Uint("email_id", e.ID).Msg("sync: time entry not accepted")
			continue
		}
		timeEntriesTotal.WithLabelValues("accepted").Inc()

		changed, err := s.Repo.MarkPushed(ctx, s.DB, e.ID, entry.Quantity)
		if err != nil {
			log.Error().Err(err).Uint("email_id", e.ID).Msg("sync: entry accepted but pushed flag not stored")
			return nil, fmt.Errorf("mark email %d pushed: %w", e.ID, err)
		}
		if !changed {
			log.Warn().Uint("email_id", e.ID).Msg("sync: pushed flag already set")
		}
		res.PushedCount++
	}

	syncRunsTotal.WithLabelValues("completed").Inc()
	res.Message = fmt.Sprintf("Pushed %d time entries to Clio", res.PushedCount)
	return res, nil
}

// renewLease extends the pass's lease and returns the context for one
// submission. Its deadline is taken before the renewal and is a fifth shorter
// than the lease, which leaves the remainder for committing the pushed flag.
func (s *SyncService) renewLease(ctx context.Context, holder string) (context.Context, context.CancelFunc, error) {
	ttl := s.leaseTTL()
	callCtx, cancel := context.WithTimeout(ctx, ttl-ttl/5)
	if err := s.Repo.RenewLease(ctx, s.DB, syncLeaseName, holder, ttl, s.now()); err != nil {
		cancel()
		return nil, nil, err
	}
	return callCtx, cancel, nil
}

// Runs returns a page of recorded passes, newest first, and the total.
func (s *SyncService) Runs(ctx context.Context, page, pageSize int) ([]domain.SyncRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Repo.CountSyncRuns(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.SyncRun{}, 0, nil
	}
	items, err := s.Repo.ListSyncRunsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// BuildTimeEntry maps an annotated email to its time-entry payload. The
// description falls back to the first 200 characters of the summary.
func BuildTimeEntry(e *domain.Email) clio.TimeEntry {
	summary := ""
	if e.Summary != nil {
		summary = *e.Summary
	}
	desc := ""
	if e.BillingDescription != nil {
		desc = strings.TrimSpace(*e.BillingDescription)
	}
	if desc == "" {
		desc = utils.TruncateRunes(summary, maxDescriptionRune)
	}
	entry := clio.TimeEntry{
		Quantity:    e.Quantity(),
		Price:       0,
		Description: desc,
		Note:        summary,
	}
	if e.DateSent != nil {
		entry.Date = e.DateSent.Format("2006-01-02")
	}
	return entry
}

func resultFromRun(run *domain.SyncRun) *PushResult {
	errs := []string(run.Errors)
	if errs == nil {
		errs = []string{}
	}
	return &PushResult{
		Success:     run.Success,
		Connected:   run.Connected,
		PushedCount: run.PushedCount,
		Errors:      errs,
		Message:     run.Message,
		RunID:       run.ID,
		Replayed:    true,
	}
}

func (s *SyncService) leaseTTL() time.Duration {
	if s.LeaseTTL > 0 {
		return s.LeaseTTL
	}
	return 10 * time.Minute
}

func (s *SyncService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
