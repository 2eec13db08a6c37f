package domain

import "errors"

var (
	// ErrEvidenceNotFound is returned when the locker has no evidence at a path.
	ErrEvidenceNotFound = errors.New("evidence not found")
	// ErrHistoricalEvidenceNotFound is returned when no version of an evidence
	// file exists on or before the requested date.
	ErrHistoricalEvidenceNotFound = errors.New("historical evidence not found")
	// ErrStaleEvidence is returned when a check depends on evidence past its TTL.
	ErrStaleEvidence = errors.New("evidence is stale")
	// ErrMissingCredentials is returned when a required secret is not configured.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidEvidencePath is returned for locker paths that would resolve
	// outside the raw and reports trees.
	ErrInvalidEvidencePath = errors.New("invalid evidence path")
)
