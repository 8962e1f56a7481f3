// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

// Progress reports how far a scan has come.
type Progress struct {
	TotalToValidate int    `json:"totalToValidate"`
	ValidatedCount  int    `json:"validatedCount"`
	CurrentCategory string `json:"currentCategory,omitempty"`
}

// Percent returns the completion ratio in [0,100]. An empty scan is at 0.
func (p Progress) Percent() int {
	if p.TotalToValidate <= 0 {
		return 0
	}
	done := p.ValidatedCount
	if done > p.TotalToValidate {
		done = p.TotalToValidate
	}
	return done * 100 / p.TotalToValidate
}

// Ratio returns the completion as a fraction in [0,1].
func (p Progress) Ratio() float64 {
	if p.TotalToValidate <= 0 {
		return 0
	}
	return float64(p.Percent()) / 100
}
