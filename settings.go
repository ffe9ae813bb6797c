// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Approx selects the probability computation method used by an analysis.
type Approx string

const (
	// ApproxNone computes the exact probability on a BDD.
	ApproxNone Approx = "none"
	// ApproxRareEvent sums the probabilities of the minimal cut sets.
	ApproxRareEvent Approx = "rare-event"
	// ApproxMCUB computes the minimal cut set upper bound.
	ApproxMCUB Approx = "mcub"
)

// Settings gathers the tunable parameters of an analysis. The zero value is
// not valid; start from DefaultSettings.
type Settings struct {
	// Approx is the probability computation method.
	Approx Approx `json:"approx"`
	// LimitOrder discards cut sets with more literals than this during
	// product generation. Zero means no limit.
	LimitOrder int `json:"limit-order"`
	// CutOff discards generated products whose probability falls strictly
	// below this floor. It must be in [0,1).
	CutOff float64 `json:"cut-off"`
	// CCFAnalysis expands common-cause failure groups before building the
	// graph.
	CCFAnalysis bool `json:"ccf-analysis"`
	// ImportanceAnalysis computes importance factors for every basic event
	// present in the products.
	ImportanceAnalysis bool `json:"importance-analysis"`
}

// DefaultSettings returns the settings used when none are given: exact
// probability, no order limit, no cut-off, no CCF expansion, and no importance
// factors.
func DefaultSettings() Settings {
	return Settings{Approx: ApproxNone}
}

func (s Settings) validate() error {
	switch s.Approx {
	case ApproxNone, ApproxRareEvent, ApproxMCUB:
	default:
		return Validityf("unknown approximation %q", s.Approx)
	}
	if s.LimitOrder < 0 {
		return Validityf("negative limit order (%d)", s.LimitOrder)
	}
	if s.CutOff < 0 || s.CutOff >= 1 {
		return Validityf("cut-off probability (%g) outside [0,1)", s.CutOff)
	}
	return nil
}

// LoadSettings reads a Settings value from a YAML file. Fields absent from the
// file keep their default value.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "reading settings file %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return s, errors.Wrapf(err, "parsing settings file %s", path)
	}
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Option is a configuration function that can be passed to Analyze to change
// the settings of a single run.
type Option func(*Settings)

// WithSettings replaces the whole settings value.
func WithSettings(s Settings) Option {
	return func(dst *Settings) {
		*dst = s
	}
}

// WithApprox sets the probability computation method.
func WithApprox(a Approx) Option {
	return func(s *Settings) {
		s.Approx = a
	}
}

// WithLimitOrder sets the maximal number of literals in a generated product.
// Zero removes the limit.
func WithLimitOrder(n int) Option {
	return func(s *Settings) {
		s.LimitOrder = n
	}
}

// WithCutOff sets the probability floor under which products are discarded.
func WithCutOff(p float64) Option {
	return func(s *Settings) {
		s.CutOff = p
	}
}

// WithCCF enables the expansion of common-cause failure groups.
func WithCCF() Option {
	return func(s *Settings) {
		s.CCFAnalysis = true
	}
}

// WithImportance enables the computation of importance factors.
func WithImportance() Option {
	return func(s *Settings) {
		s.ImportanceAnalysis = true
	}
}
