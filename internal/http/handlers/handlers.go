package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/services"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CredentialService manages the billing-system OAuth credential.
type CredentialService interface {
	// AuthorizationURL returns the provider consent URL.
	AuthorizationURL() string
	// Connect exchanges an authorization code and stores the credential.
	Connect(ctx context.Context, code string) (*domain.Credential, error)
	// Current returns the stored credential or nil.
	Current(ctx context.Context) (*domain.Credential, error)
}

// ConnectionService reads through the stored billing credential.
type ConnectionService interface {
	Test(ctx context.Context) (*services.ConnectionStatus, error)
	Matters(ctx context.Context) ([]map[string]any, error)
}

// SyncService pushes pending time entries.
type SyncService interface {
	// PushIdempotent runs a pass, or replays the run recorded under key.
	PushIdempotent(ctx context.Context, key string) (*services.PushResult, error)
	// Runs returns a page of recorded passes and the total count.
	Runs(ctx context.Context, page, pageSize int) ([]domain.SyncRun, int64, error)
}

// MailboxService imports emails and stores extension captures.
type MailboxService interface {
	AuthURL() (string, error)
	Connect(ctx context.Context, code string) error
	Connected(ctx context.Context) (bool, error)
	Import(ctx context.Context, daysBack, maxResults int) (*services.ImportResult, error)
	Capture(ctx context.Context, in domain.InboundEmail) (*domain.Email, bool, error)
	Stored(ctx context.Context) ([]domain.Email, error)
}

// SummaryService generates, lists and edits summaries.
type SummaryService interface {
	Generate(ctx context.Context) (*services.GenerateResult, error)
	List(ctx context.Context) ([]domain.Email, error)
	// Stats returns the summarized count and latest update, for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Update(ctx context.Context, id uint, a domain.Annotation) (*domain.Email, error)
}

//
// Handler wiring
//

// Deps lists what Handlers needs.
type Deps struct {
	Credentials CredentialService
	Connection  ConnectionService
	Sync        SyncService
	Mailbox     MailboxService
	Summaries   SummaryService

	// FrontendURL is where OAuth callbacks redirect to. Empty means the
	// service root.
	FrontendURL string
	ServiceName string
	Version     string
}

// Handlers groups every HTTP endpoint of the billing backend.
type Handlers struct {
	creds     CredentialService
	conn      ConnectionService
	sync      SyncService
	mailbox   MailboxService
	summaries SummaryService

	frontendURL string
	serviceName string
	version     string
	now         func() time.Time
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	return &Handlers{
		creds:       d.Credentials,
		conn:        d.Connection,
		sync:        d.Sync,
		mailbox:     d.Mailbox,
		summaries:   d.Summaries,
		frontendURL: d.FrontendURL,
		serviceName: d.ServiceName,
		version:     d.Version,
		now:         time.Now,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(utils.ParseIntOr(c.Query("page"), defaultPage), 1)
	pageSize = utils.Clamp(utils.ParseIntOr(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return page, pageSize
}
