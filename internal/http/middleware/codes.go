package middleware

// Error codes written by middleware that aborts a request. The handlers
// package re-exports them, so its code table matches what clients receive.
const (
	CodeRateLimited       = "rate_limited"
	CodeBadIdempotencyKey = "bad_idempotency_key"
	CodeInternal          = "internal_error"
)
