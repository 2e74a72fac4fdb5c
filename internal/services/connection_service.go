// Package services – ConnectionService
//
// This file implements the read-only calls against the billing system: the
// connectivity check and the matter listing. Connectivity failures are
// reported in the result; they are never returned as errors.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
)

// ClioReader is the read side of the billing client.
type ClioReader interface {
	WhoAmI(ctx context.Context, accessToken string) (map[string]any, error)
	ListMatters(ctx context.Context, accessToken string) ([]map[string]any, error)
}

// ConnectionStatus is the result of a connectivity check.
type ConnectionStatus struct {
	Connected bool           `json:"connected"`
	Message   string         `json:"message"`
	User      map[string]any `json:"user,omitempty"`
}

// ConnectionService checks and reads the billing-system connection.
type ConnectionService struct {
	Creds  CredentialSource
	Reader ClioReader
}

// Test reports whether the stored credential works. Without a credential no
// network call is made.
func (s *ConnectionService) Test(ctx context.Context) (*ConnectionStatus, error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Test")
	defer span.End()

	cred, err := s.Creds.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &ConnectionStatus{Connected: false, Message: msgNoToken}, nil
	}

	user, err := s.Reader.WhoAmI(ctx, cred.AccessToken)
	if err != nil {
		var pe *clio.ProviderError
		if errors.As(err, &pe) && pe.StatusCode != 0 {
			return &ConnectionStatus{Connected: false, Message: fmt.Sprintf("API call failed: %d", pe.StatusCode)}, nil
		}
		return &ConnectionStatus{Connected: false, Message: err.Error()}, nil
	}
	return &ConnectionStatus{Connected: true, Message: "Clio connection successful", User: user}, nil
}

// Matters lists the matters visible to the stored credential. It returns
// ErrNotConnected when no credential is stored.
func (s *ConnectionService) Matters(ctx context.Context) ([]map[string]any, error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Matters")
	defer span.End()

	cred, err := s.Creds.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrNotConnected
	}
	return s.Reader.ListMatters(ctx, cred.AccessToken)
}
