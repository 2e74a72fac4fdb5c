package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/repo"
)

type fakeAnnotator struct {
	fail  map[string]bool
	calls int
}

func (f *fakeAnnotator) Annotate(_ context.Context, e *domain.Email) (domain.Annotation, error) {
	f.calls++
	if f.fail[e.GmailID] {
		return domain.Annotation{}, errors.New("openai: unexpected status 500")
	}
	return domain.Annotation{
		Summary:            "  Summary of café " + e.Subject + "\n",
		BillingHours:       0,
		BillingDescription: " Review ",
	}, nil
}

func seedRaw(t *testing.T, db *gorm.DB, ids ...string) []uint {
	t.Helper()
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		e, _, err := repo.InsertEmailIfAbsent(context.Background(), db, domain.InboundEmail{ID: id, Subject: id})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, e.ID)
	}
	return out
}

func TestSummaryService_Generate(t *testing.T) {
	db := newSvcDB(t)
	ids := seedRaw(t, db, "e1", "e2", "e3")
	ann := &fakeAnnotator{fail: map[string]bool{"e2": true}}
	s := &SummaryService{DB: db, Repo: dbStore{}, Annotator: ann}

	res, err := s.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.SummariesGenerated != 2 || len(res.Errors) != 1 || res.Message != "Generated 2 summaries" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if want := fmt.Sprintf("%d: openai: unexpected status 500", ids[1]); res.Errors[0] != want {
		t.Fatalf("error = %q, want %q", res.Errors[0], want)
	}

	e1, _ := repo.GetEmail(context.Background(), db, ids[0])
	if e1.Summary == nil || *e1.Summary != "Summary of café e1" {
		t.Fatalf("summary not normalized: %v", e1.Summary)
	}
	if *e1.BillingHours != domain.DefaultBillingHours || *e1.BillingDescription != "Review" {
		t.Fatalf("unexpected annotation: %v %v", *e1.BillingHours, *e1.BillingDescription)
	}

	// a failed annotation is never replaced with a made-up summary
	e2, _ := repo.GetEmail(context.Background(), db, ids[1])
	if e2.Summary != nil {
		t.Fatalf("failed email must stay unsummarized, got %q", *e2.Summary)
	}

	// only the failed one is retried
	ann.fail = nil
	ann.calls = 0
	res, err = s.Generate(context.Background())
	if err != nil || res.SummariesGenerated != 1 || ann.calls != 1 {
		t.Fatalf("retry: %+v calls=%d err=%v", res, ann.calls, err)
	}

	res, err = s.Generate(context.Background())
	if err != nil || res.Message != "No emails need summaries" {
		t.Fatalf("nothing left: %+v %v", res, err)
	}
}

func TestSummaryService_GenerateWithoutAnnotator(t *testing.T) {
	db := newSvcDB(t)
	s := &SummaryService{DB: db, Repo: dbStore{}}

	res, err := s.Generate(context.Background())
	if err != nil || res.Message != "No emails need summaries" {
		t.Fatalf("empty store should not need a model: %+v %v", res, err)
	}

	seedRaw(t, db, "e1")
	var ce *ConfigurationError
	if _, err := s.Generate(context.Background()); !errors.As(err, &ce) || ce.Setting != "OPENAI_API_KEY" {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSummaryService_Update(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	s := &SummaryService{DB: db, Repo: dbStore{}}
	open := seedAnnotated(t, db, "open", "draft", nil, nil, nil)
	done := seedAnnotated(t, db, "done", "sent", f64p(1), nil, nil)
	if _, err := repo.MarkPushed(ctx, db, done, 1); err != nil {
		t.Fatalf("mark: %v", err)
	}

	if _, err := s.Update(ctx, open, domain.Annotation{Summary: " ", BillingHours: 1}); !errors.Is(err, ErrInvalidSummary) {
		t.Fatalf("expected ErrInvalidSummary, got %v", err)
	}
	if _, err := s.Update(ctx, open, domain.Annotation{Summary: "x", BillingHours: -1}); !errors.Is(err, ErrInvalidSummary) {
		t.Fatalf("expected ErrInvalidSummary, got %v", err)
	}
	if _, err := s.Update(ctx, 999, domain.Annotation{Summary: "x", BillingHours: 1}); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, done, domain.Annotation{Summary: "x", BillingHours: 1}); !errors.Is(err, ErrAlreadyPushed) {
		t.Fatalf("expected ErrAlreadyPushed, got %v", err)
	}

	e, err := s.Update(ctx, open, domain.Annotation{Summary: "Final", BillingHours: 1.5, BillingDescription: "Call"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *e.Summary != "Final" || *e.BillingHours != 1.5 || *e.BillingDescription != "Call" {
		t.Fatalf("unexpected email: %+v", e)
	}

	list, err := s.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	n, last, err := s.Stats(ctx)
	if err != nil || n != 2 || last == nil {
		t.Fatalf("stats: %d %v %v", n, last, err)
	}
}

// lostWriteStore reports every annotation write as a no-op, as a concurrent
// generator that won the row would.
type lostWriteStore struct{ dbStore }

func (lostWriteStore) SetAnnotation(context.Context, *gorm.DB, uint, domain.Annotation) (bool, error) {
	return false, nil
}

func TestSummaryService_Generate_UsesStore(t *testing.T) {
	db := newSvcDB(t)
	seedRaw(t, db, "g1")
	ann := &fakeAnnotator{}
	s := &SummaryService{DB: db, Repo: lostWriteStore{}, Annotator: ann}

	res, err := s.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ann.calls != 1 || res.SummariesGenerated != 0 || len(res.Errors) != 0 {
		t.Fatalf("a lost write must not count as generated: %+v calls=%d", res, ann.calls)
	}
}
