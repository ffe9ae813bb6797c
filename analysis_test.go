// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dalzilio/fta/mef"
)

func be(name string, p float64) *mef.BasicEvent {
	return &mef.BasicEvent{Name: name, Prob: p}
}

func mg(name string, op mef.Op, args ...string) *mef.Gate {
	return &mef.Gate{Name: name, Formula: mef.Formula{Op: op, Args: args}}
}

func mvote(name string, k int, args ...string) *mef.Gate {
	return &mef.Gate{Name: name, Formula: mef.Formula{Op: mef.OpAtleast, K: k, Args: args}}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

//********************************************************************************************

func TestAnalyzeConjunction(t *testing.T) {
	m := &mef.Model{
		Name:        "conjunction",
		Top:         "top",
		Gates:       []*mef.Gate{mg("top", mef.OpAnd, "A", "B")},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
	}
	r, err := Analyze(context.Background(), m, WithImportance())
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1, 2}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.02) {
		t.Errorf("probability: expected 0.02, actual %g", r.PTotal)
	}
	var tests = []struct {
		name               string
		mif, cif, dif, raw float64
	}{
		{"A", 0.2, 1, 1, 10},
		{"B", 0.1, 1, 1, 5},
	}
	for _, tt := range tests {
		f, ok := r.Importance[tt.name]
		if !ok {
			t.Errorf("no importance factors for %s", tt.name)
			continue
		}
		if !almost(f.MIF, tt.mif) || !almost(f.CIF, tt.cif) || !almost(f.DIF, tt.dif) || !almost(f.RAW, tt.raw) {
			t.Errorf("importance of %s: expected MIF=%g CIF=%g DIF=%g RAW=%g, actual %+v", tt.name, tt.mif, tt.cif, tt.dif, tt.raw, f)
		}
		// removing either event makes the top event impossible
		if !math.IsInf(f.RRW, 1) {
			t.Errorf("importance of %s: expected an infinite RRW, actual %g", tt.name, f.RRW)
		}
	}
}

func TestAnalyzeDisjunction(t *testing.T) {
	m := &mef.Model{
		Name:        "disjunction",
		Top:         "top",
		Gates:       []*mef.Gate{mg("top", mef.OpOr, "A", "B")},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
	}
	var tests = []struct {
		approx   Approx
		expected float64
	}{
		{ApproxNone, 0.28},
		{ApproxRareEvent, 0.3},
		{ApproxMCUB, 0.28},
	}
	for _, tt := range tests {
		r, err := Analyze(context.Background(), m, WithApprox(tt.approx))
		if err != nil {
			t.Fatalf("analyzing with %s: %s", tt.approx, err)
		}
		if diff := cmp.Diff([]Product{{1}, {2}}, r.Products); diff != "" {
			t.Errorf("products with %s mismatch (-expected +actual):\n%s", tt.approx, diff)
		}
		if !almost(r.PTotal, tt.expected) {
			t.Errorf("probability with %s: expected %g, actual %g", tt.approx, tt.expected, r.PTotal)
		}
	}
}

func TestAnalyzeAbsorption(t *testing.T) {
	m := &mef.Model{
		Name: "absorption",
		Top:  "top",
		Gates: []*mef.Gate{
			mg("top", mef.OpOr, "A", "sub"),
			mg("sub", mef.OpAnd, "A", "B"),
		},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
	}
	r, err := Analyze(context.Background(), m)
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.1) {
		t.Errorf("probability: expected 0.1, actual %g", r.PTotal)
	}
}

func TestAnalyzeVote(t *testing.T) {
	m := &mef.Model{
		Name:        "vote",
		Top:         "top",
		Gates:       []*mef.Gate{mvote("top", 2, "A", "B", "C")},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.1), be("C", 0.1)},
	}
	r, err := Analyze(context.Background(), m)
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1, 2}, {1, 3}, {2, 3}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.028) {
		t.Errorf("probability: expected 0.028, actual %g", r.PTotal)
	}
}

func TestAnalyzeNonCoherent(t *testing.T) {
	m := &mef.Model{
		Name: "noncoherent",
		Top:  "top",
		Gates: []*mef.Gate{
			mg("top", mef.OpAnd, "A", "nb"),
			mg("nb", mef.OpNot, "B"),
		},
		BasicEvents: []*mef.BasicEvent{be("A", 0.5), be("B", 0.3)},
	}
	r, err := Analyze(context.Background(), m)
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1, -2}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if got := r.FormatProduct(r.Products[0]); got != "A ~B" {
		t.Errorf("formatting: expected %q, actual %q", "A ~B", got)
	}
	if !almost(r.PTotal, 0.35) {
		t.Errorf("probability: expected 0.35, actual %g", r.PTotal)
	}
}

func TestAnalyzeModules(t *testing.T) {
	m := &mef.Model{
		Name: "modular",
		Top:  "top",
		Gates: []*mef.Gate{
			mg("top", mef.OpOr, "M1", "M2"),
			mg("M1", mef.OpAnd, "X", "Y"),
			mg("M2", mef.OpNull, "Z"),
		},
		BasicEvents: []*mef.BasicEvent{be("X", 0.1), be("Y", 0.2), be("Z", 0.3)},
	}
	r, err := Analyze(context.Background(), m)
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{3}, {1, 2}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.314) {
		t.Errorf("probability: expected 0.314, actual %g", r.PTotal)
	}
}

func TestAnalyzeLimitOrder(t *testing.T) {
	m := &mef.Model{
		Name: "limit",
		Top:  "top",
		Gates: []*mef.Gate{
			mg("top", mef.OpOr, "A", "sub"),
			mg("sub", mef.OpAnd, "B", "C"),
		},
		BasicEvents: []*mef.BasicEvent{be("A", 0.05), be("B", 0.1), be("C", 0.2)},
	}
	r, err := Analyze(context.Background(), m, WithLimitOrder(1), WithApprox(ApproxRareEvent))
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.05) {
		t.Errorf("probability: expected 0.05, actual %g", r.PTotal)
	}
}

func TestAnalyzeCutOff(t *testing.T) {
	m := &mef.Model{
		Name:        "cutoff",
		Top:         "top",
		Gates:       []*mef.Gate{mg("top", mef.OpOr, "A", "B")},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
	}
	r, err := Analyze(context.Background(), m, WithCutOff(0.15), WithApprox(ApproxRareEvent))
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{2}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if !almost(r.PTotal, 0.2) {
		t.Errorf("probability: expected 0.2, actual %g", r.PTotal)
	}
}

func TestAnalyzeHouseEvents(t *testing.T) {
	mk := func(op mef.Op, state bool) *mef.Model {
		return &mef.Model{
			Name:        "house",
			Top:         "top",
			Gates:       []*mef.Gate{mg("top", op, "A", "H")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.1)},
			HouseEvents: []*mef.HouseEvent{{Name: "H", State: state}},
		}
	}
	// a true house event is neutral in a conjunction
	r, err := Analyze(context.Background(), mk(mef.OpAnd, true))
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{1}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if len(r.Warnings) != 0 || !almost(r.PTotal, 0.1) {
		t.Errorf("expected no warning and probability 0.1, actual %v and %g", r.Warnings, r.PTotal)
	}
	// a false house event collapses the conjunction
	r, err = Analyze(context.Background(), mk(mef.OpAnd, false))
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if len(r.Products) != 0 || r.PTotal != 0 {
		t.Errorf("false top: expected no product and probability 0, actual %v and %g", r.Products, r.PTotal)
	}
	if diff := cmp.Diff([]string{"the top gate is constant false"}, r.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-expected +actual):\n%s", diff)
	}
	// a true house event collapses the disjunction; the empty set is the only
	// minimal cut set
	r, err = Analyze(context.Background(), mk(mef.OpOr, true))
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if len(r.Products) != 1 || len(r.Products[0]) != 0 || r.PTotal != 1 {
		t.Errorf("true top: expected the empty product and probability 1, actual %v and %g", r.Products, r.PTotal)
	}
	if diff := cmp.Diff([]string{"the top gate is constant true"}, r.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-expected +actual):\n%s", diff)
	}
}

func TestAnalyzeCCF(t *testing.T) {
	m := &mef.Model{
		Name:        "ccf",
		Top:         "top",
		Gates:       []*mef.Gate{mg("top", mef.OpAnd, "B1", "B2")},
		BasicEvents: []*mef.BasicEvent{be("B1", 0.01), be("B2", 0.01)},
		CCFGroups: []*mef.CCFGroup{{
			Name:    "pumps",
			Model:   mef.BetaFactor,
			Members: []string{"B1", "B2"},
			Q:       0.01,
			Factors: []float64{0.2},
		}},
	}
	r, err := Analyze(context.Background(), m, WithCCF())
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if diff := cmp.Diff([]Product{{3}, {1, 2}}, r.Products); diff != "" {
		t.Errorf("products mismatch (-expected +actual):\n%s", diff)
	}
	if got := r.FormatProduct(r.Products[0]); got != "[B1 B2]" {
		t.Errorf("common failure product: expected %q, actual %q", "[B1 B2]", got)
	}
	if got := r.FormatProduct(r.Products[1]); got != "[B1] [B2]" {
		t.Errorf("independent failure product: expected %q, actual %q", "[B1] [B2]", got)
	}
	// p = beta Q + (1 - beta Q) ((1-beta) Q)^2
	expected := 0.002 + 0.998*0.008*0.008
	if !almost(r.PTotal, expected) {
		t.Errorf("probability: expected %g, actual %g", expected, r.PTotal)
	}
	// the original members are gates now, the input model is left intact
	if m.BasicEvent("B1") == nil || m.Gate("B1") != nil {
		t.Errorf("the analyzed model was modified by the expansion")
	}
}

func TestAnalyzeInvalidModel(t *testing.T) {
	m := &mef.Model{
		Name:        "broken",
		Gates:       []*mef.Gate{mg("top", mef.OpOr, "A")},
		BasicEvents: []*mef.BasicEvent{be("A", 0.1)},
	}
	if _, err := Analyze(context.Background(), m); err == nil || !IsValidity(err) {
		t.Errorf("model without a top gate: expected a validity error, actual %v", err)
	}
	if _, err := Analyze(context.Background(), m, WithApprox(Approx("median"))); err == nil || !IsValidity(err) {
		t.Errorf("unknown approximation: expected a validity error, actual %v", err)
	}
}

func TestAnalyzeAll(t *testing.T) {
	models := []*mef.Model{
		{
			Name:        "first",
			Top:         "top",
			Gates:       []*mef.Gate{mg("top", mef.OpAnd, "A", "B")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
		},
		{
			Name:        "second",
			Top:         "top",
			Gates:       []*mef.Gate{mg("top", mef.OpOr, "A", "B")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2)},
		},
	}
	results, err := AnalyzeAll(context.Background(), models)
	if err != nil {
		t.Fatalf("analyzing: %s", err)
	}
	if len(results) != 2 || results[0].Model != "first" || results[1].Model != "second" {
		t.Fatalf("expected one result per model, in order")
	}
	if !almost(results[0].PTotal, 0.02) || !almost(results[1].PTotal, 0.28) {
		t.Errorf("probabilities: expected 0.02 and 0.28, actual %g and %g", results[0].PTotal, results[1].PTotal)
	}

	models[1].Top = "missing"
	if _, err := AnalyzeAll(context.Background(), models); err == nil {
		t.Errorf("batch with an invalid model: expected an error")
	}
}

//********************************************************************************************

// evalGate computes the truth value of a gate formula under an assignment of
// the basic events.
func evalGate(m *mef.Model, g *mef.Gate, val map[string]bool) bool {
	count := 0
	for _, a := range g.Formula.Args {
		hold := false
		if sub := m.Gate(a); sub != nil {
			hold = evalGate(m, sub, val)
		} else if he := m.HouseEvent(a); he != nil {
			hold = he.State
		} else {
			hold = val[a]
		}
		if hold {
			count++
		}
	}
	n := len(g.Formula.Args)
	switch g.Formula.Op {
	case mef.OpAnd:
		return count == n
	case mef.OpOr, mef.OpNull:
		return count > 0
	case mef.OpAtleast:
		return count >= g.Formula.K
	case mef.OpXor:
		return count == 1
	case mef.OpNot, mef.OpNor:
		return count == 0
	case mef.OpNand:
		return count < n
	}
	return false
}

// enumProb computes the top event probability by exhaustive enumeration of the
// basic event assignments.
func enumProb(m *mef.Model) float64 {
	top := m.Gate(m.Top)
	total := 0.0
	for bits := 0; bits < 1<<len(m.BasicEvents); bits++ {
		val := make(map[string]bool, len(m.BasicEvents))
		p := 1.0
		for i, e := range m.BasicEvents {
			if bits&(1<<i) != 0 {
				val[e.Name] = true
				p *= e.Prob
			} else {
				p *= 1 - e.Prob
			}
		}
		if evalGate(m, top, val) {
			total += p
		}
	}
	return total
}

func TestAnalyzeExactProbability(t *testing.T) {
	var tests = []*mef.Model{
		{
			Name:        "vote",
			Top:         "top",
			Gates:       []*mef.Gate{mvote("top", 2, "A", "B", "C")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2), be("C", 0.3)},
		},
		{
			Name: "noncoherent",
			Top:  "top",
			Gates: []*mef.Gate{
				mg("top", mef.OpOr, "sub", "C"),
				mg("sub", mef.OpAnd, "A", "nb"),
				mg("nb", mef.OpNot, "B"),
			},
			BasicEvents: []*mef.BasicEvent{be("A", 0.5), be("B", 0.3), be("C", 0.2)},
		},
		{
			Name:        "exclusive",
			Top:         "top",
			Gates:       []*mef.Gate{mg("top", mef.OpXor, "A", "B")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.4), be("B", 0.25)},
		},
		{
			Name:        "negated",
			Top:         "top",
			Gates:       []*mef.Gate{mg("top", mef.OpNand, "A", "B")},
			BasicEvents: []*mef.BasicEvent{be("A", 0.4), be("B", 0.25)},
		},
		{
			Name: "shared",
			Top:  "top",
			Gates: []*mef.Gate{
				mg("top", mef.OpOr, "left", "right"),
				mg("left", mef.OpAnd, "A", "B"),
				mg("right", mef.OpAnd, "B", "C"),
			},
			BasicEvents: []*mef.BasicEvent{be("A", 0.1), be("B", 0.2), be("C", 0.3)},
		},
	}
	for _, m := range tests {
		r, err := Analyze(context.Background(), m)
		if err != nil {
			t.Errorf("analyzing %s: %s", m.Name, err)
			continue
		}
		expected := enumProb(m)
		if !almost(r.PTotal, expected) {
			t.Errorf("probability of %s: expected %g by enumeration, actual %g", m.Name, expected, r.PTotal)
		}
	}
}
