package domain

// BuildIdempotencyKey scopes a front-end request id so that a redelivered
// chat update replays the stored reply instead of running again.
func BuildIdempotencyKey(scope, requestID string) string {
	return scope + ":" + requestID
}
