package strategy

import (
	"log/slog"

	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/expand"
)

// Classifier supplies the complexity signal for mode upgrades. The query
// analyzer from the expansion package satisfies it.
type Classifier interface {
	Analyze(query string) expand.Analysis
}

var _ Classifier = (*expand.Analyzer)(nil)

// Decision is the outcome of strategy selection for one query.
type Decision struct {
	Profile Profile

	// Requested is what the caller asked for; equal to Profile.Mode unless
	// an upgrade happened.
	Requested Mode

	// Forced is true when the caller named a mode explicitly.
	Forced bool

	// Upgraded is true when the complexity signal raised the mode above
	// the requested or default one.
	Upgraded bool

	Analysis expand.Analysis
}

// Selector picks retrieval profiles.
type Selector struct {
	defaultMode Mode
	profiles    map[Mode]Profile
	classifier  Classifier
	logger      *slog.Logger
}

// NewSelector builds a selector from config. Profile overrides in
// cfg.Profiles are merged over the built-in per-mode parameters.
func NewSelector(cfg config.StrategyConfig, classifier Classifier, logger *slog.Logger) (*Selector, error) {
	def, err := ParseMode(cfg.DefaultMode)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	profiles := builtinProfiles()
	for name, override := range cfg.Profiles {
		mode, err := ParseMode(name)
		if err != nil {
			return nil, err
		}
		profiles[mode] = applyOverride(profiles[mode], override)
	}

	return &Selector{
		defaultMode: def,
		profiles:    profiles,
		classifier:  classifier,
		logger:      logger,
	}, nil
}

// Select picks the profile for a query. requested is the caller's mode name,
// empty for "use the default".
//
// Upgrade rules: a complex query raises an unforced selection to
// comprehensive and a forced fast request to accurate; an analytical
// question raises an unforced fast default to accurate. A forced mode is
// never lowered, and forced comprehensive is never touched at all.
func (s *Selector) Select(query, requested string) (Decision, error) {
	d := Decision{Forced: requested != ""}

	mode := s.defaultMode
	if d.Forced {
		var err error
		mode, err = ParseMode(requested)
		if err != nil {
			return Decision{}, err
		}
	}
	d.Requested = mode
	d.Analysis = s.classifier.Analyze(query)

	selected := mode
	switch {
	case d.Forced && mode == ModeFast && d.Analysis.Complexity == expand.ComplexityComplex:
		selected = ModeAccurate

	case !d.Forced && d.Analysis.Complexity == expand.ComplexityComplex:
		selected = ModeComprehensive

	case !d.Forced && mode == ModeFast && (d.Analysis.IsQuestion || d.Analysis.Complexity == expand.ComplexityModerate):
		selected = ModeAccurate
	}

	if selected != mode {
		d.Upgraded = true
		s.logger.Debug("strategy_upgraded",
			slog.String("query", query),
			slog.String("requested", mode.String()),
			slog.String("selected", selected.String()),
			slog.String("complexity", d.Analysis.Complexity.String()))
	}

	d.Profile = s.profiles[selected]
	return d, nil
}

// ProfileFor returns the (possibly overridden) profile for a mode without
// running classification. Used when degrading after a stage failure.
func (s *Selector) ProfileFor(m Mode) Profile {
	return s.profiles[m]
}

// DefaultMode exposes the configured default.
func (s *Selector) DefaultMode() Mode {
	return s.defaultMode
}
