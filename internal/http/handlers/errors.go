// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics, domain codes name the billing workflow
// condition that status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "sync_in_progress",
//	  "message": "sync already in progress"
//	}
package handlers

import "github.com/tbourn/legal-billing-backend/internal/http/middleware"

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Written by middleware before a handler runs.
	ErrCodeRateLimited       = middleware.CodeRateLimited
	ErrCodeBadIdempotencyKey = middleware.CodeBadIdempotencyKey
	ErrCodeInternal          = middleware.CodeInternal

	// Domain-specific:
	ErrCodeNotConnected        = "not_connected"
	ErrCodeSyncInProgress      = "sync_in_progress"
	ErrCodeAlreadyPushed       = "already_pushed"
	ErrCodeConfiguration       = "configuration_error"
	ErrCodeProvider            = "provider_error"
	ErrCodeTokenExchangeFailed = "token_exchange_failed"
	ErrCodePushFailed          = "push_failed"
	ErrCodeImportFailed        = "import_failed"
	ErrCodeGenerateFailed      = "generate_failed"
	ErrCodeListFailed          = "list_failed"
)
