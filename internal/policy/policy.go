// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package policy maps raw validation results to the status a user sees,
// according to the active validation mode.
package policy

import "github.com/ManuGH/streamcheck/internal/domain/stream"

// Effective returns the user-visible status for a raw status and cause.
//
//   - strict: identity.
//   - disabled: every stream counts as working.
//   - lenient: a broken result whose validation call was aborted counts as
//     working. Any verdict from a probe or the service stays as reported,
//     including transport failures.
//
// Applying Effective to its own output is a no-op.
func Effective(raw stream.Status, cause stream.Cause, mode stream.ValidationMode) stream.Status {
	switch mode {
	case stream.ValidationDisabled:
		return stream.StatusWorking
	case stream.ValidationLenient:
		if raw == stream.StatusBroken && cause == stream.CauseAborted {
			return stream.StatusWorking
		}
		return raw
	default:
		return raw
	}
}

// Apply rewrites the status of r under mode. The cause is kept so the
// original verdict remains visible to callers that need it.
func Apply(r stream.Result, mode stream.ValidationMode) stream.Result {
	r.Status = Effective(r.Status, r.Cause, mode)
	return r
}
