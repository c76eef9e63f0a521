package mesh

import "errors"

// Policy rejections surfaced to callers. These are never retried by this
// layer; transient I/O failures degrade to empty results instead and do not
// appear here.
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidSubject  = errors.New("subject must be a channel under mesh.channel.*")
	ErrPayloadTooLarge = errors.New("message text too long")
	ErrEmptyMessage    = errors.New("message text is required")
)
