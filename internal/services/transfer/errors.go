package transfer

import "errors"

var ErrSessionNotFound = errors.New("upload session not found")
var ErrSessionCancelled = errors.New("upload session is cancelled")
var ErrChunkIndexOutOfRange = errors.New("chunk index out of range")

// Retryable transport failures, contained inside the uploader until the
// retry budget is exhausted.
var ErrChunkTimeout = errors.New("chunk transfer timed out")
var ErrChunkTransport = errors.New("chunk transport failed")

// ErrChunkDataMissing means a pending chunk was never received, so a resume
// pass has nothing to resend for it.
var ErrChunkDataMissing = errors.New("chunk data not retained")

// Integrity failures are terminal, the upload has to restart from scratch.
var ErrIntegrity = errors.New("upload integrity check failed")
var ErrSizeMismatch = errors.New("assembled size does not match declared file size")
