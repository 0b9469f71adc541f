// Package strategy selects a retrieval profile per query. A caller may force
// a mode; otherwise the configured default applies, and a cheap complexity
// classification can upgrade the choice. Upgrades are allowed, silent
// downgrades are not.
package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/seekly/seekly/internal/config"
)

// Mode is a latency/quality trade-off requested by the caller.
type Mode int

const (
	// ModeFast favors latency: shallow candidates, no expansion, no rerank.
	ModeFast Mode = iota

	// ModeAccurate is the balanced default.
	ModeAccurate

	// ModeComprehensive favors recall: expansion, deep candidates, rerank.
	ModeComprehensive
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeAccurate:
		return "accurate"
	case ModeComprehensive:
		return "comprehensive"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode. Empty string is not a valid
// mode; callers pass the configured default instead.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast":
		return ModeFast, nil
	case "accurate":
		return ModeAccurate, nil
	case "comprehensive":
		return ModeComprehensive, nil
	default:
		return ModeAccurate, fmt.Errorf("unknown mode %q (want fast, accurate or comprehensive)", s)
	}
}

// Profile is the full retrieval parameter set for one mode.
type Profile struct {
	Mode Mode

	// TopK is the final result count.
	TopK int

	// CandidateFactor multiplies TopK to get the per-path candidate depth.
	CandidateFactor int

	// MinScore drops fused candidates below this normalized score.
	MinScore float64

	// VectorWeight biases fusion toward the dense path. The lexical
	// weight is its complement.
	VectorWeight float64

	UseExpansion bool
	UseSemantic  bool
	UseRerank    bool
	UseDiversity bool

	// Timeout bounds the whole retrieval stage for this profile.
	Timeout time.Duration
}

// builtinProfiles are the defaults before any config override.
func builtinProfiles() map[Mode]Profile {
	return map[Mode]Profile{
		ModeFast: {
			Mode:            ModeFast,
			TopK:            5,
			CandidateFactor: 2,
			MinScore:        0.05,
			VectorWeight:    0.8,
			UseExpansion:    false,
			UseSemantic:     true,
			UseRerank:       false,
			UseDiversity:    false,
			Timeout:         10 * time.Second,
		},
		ModeAccurate: {
			Mode:            ModeAccurate,
			TopK:            10,
			CandidateFactor: 4,
			MinScore:        0.02,
			VectorWeight:    0.65,
			UseExpansion:    true,
			UseSemantic:     true,
			UseRerank:       true,
			UseDiversity:    true,
			Timeout:         30 * time.Second,
		},
		ModeComprehensive: {
			Mode:            ModeComprehensive,
			TopK:            20,
			CandidateFactor: 6,
			MinScore:        0,
			VectorWeight:    0.5,
			UseExpansion:    true,
			UseSemantic:     true,
			UseRerank:       true,
			UseDiversity:    true,
			Timeout:         60 * time.Second,
		},
	}
}

// applyOverride merges a config profile into a built-in one. The config
// surface covers the commonly tuned fields; score threshold, vector weight
// and diversity stay built-in per mode.
func applyOverride(p Profile, o config.ProfileConfig) Profile {
	if o.TopK > 0 {
		p.TopK = o.TopK
	}
	if o.CandidateFactor > 0 {
		p.CandidateFactor = o.CandidateFactor
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	if o.UseExpansion != nil {
		p.UseExpansion = *o.UseExpansion
	}
	if o.UseSemantic != nil {
		p.UseSemantic = *o.UseSemantic
	}
	if o.UseRerank != nil {
		p.UseRerank = *o.UseRerank
	}
	return p
}

// Degrade returns the next simpler mode. Fast has nowhere simpler to go.
func Degrade(m Mode) Mode {
	switch m {
	case ModeComprehensive:
		return ModeAccurate
	case ModeAccurate:
		return ModeFast
	default:
		return ModeFast
	}
}
