// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package mef

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestBetaFactorExpansion(t *testing.T) {
	m := &Model{
		Name: "beta",
		Top:  "top",
		Gates: []*Gate{
			{Name: "top", Formula: Formula{Op: OpOr, Args: []string{"B1", "B2", "B3"}}},
		},
		BasicEvents: []*BasicEvent{
			{Name: "B1", Prob: 0.1},
			{Name: "B2", Prob: 0.1},
			{Name: "B3", Prob: 0.1},
		},
		CCFGroups: []*CCFGroup{{
			Name:    "grp",
			Model:   BetaFactor,
			Members: []string{"B1", "B2", "B3"},
			Q:       0.1,
			Factors: []float64{0.3},
		}},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validating: %s", err)
	}
	m.ExpandCCF()
	if m.CCFGroups != nil {
		t.Errorf("groups left after expansion")
	}
	// only single failures and the whole-group failure remain
	if e := m.BasicEvent("[B1]"); e == nil || !almost(e.Prob, 0.07) {
		t.Errorf("single failure event: expected probability 0.07, actual %v", e)
	}
	if e := m.BasicEvent("[B1 B2 B3]"); e == nil || !almost(e.Prob, 0.03) {
		t.Errorf("common failure event: expected probability 0.03, actual %v", e)
	}
	if m.BasicEvent("[B1 B2]") != nil {
		t.Errorf("pair failure event generated by a beta-factor group")
	}
	if m.BasicEvent("B1") != nil {
		t.Errorf("member B1 is still a basic event")
	}
	g := m.Gate("B1")
	if g == nil || g.Formula.Op != OpOr {
		t.Fatalf("member B1: expected an or gate, actual %v", g)
	}
	if diff := cmp.Diff([]string{"[B1]", "[B1 B2 B3]"}, g.Formula.Args); diff != "" {
		t.Errorf("member gate arguments mismatch (-expected +actual):\n%s", diff)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("the expanded model must stay valid: %s", err)
	}
}

func TestMGLLevelProbs(t *testing.T) {
	grp := &CCFGroup{
		Name:    "grp",
		Model:   MGL,
		Members: []string{"P1", "P2", "P3"},
		Q:       0.1,
		Factors: []float64{0.2, 0.5},
	}
	probs := grp.levelProbs(3)
	// Q (1 - beta), Q beta (1 - gamma) / C(2,1), Q beta gamma
	expected := []float64{0, 0.08, 0.005, 0.01}
	for k := 1; k <= 3; k++ {
		if !almost(probs[k], expected[k]) {
			t.Errorf("order %d: expected %g, actual %g", k, expected[k], probs[k])
		}
	}
	// with a single factor the whole-group combination vanishes
	grp.Factors = []float64{0.2}
	probs = grp.levelProbs(3)
	if !almost(probs[1], 0.08) || !almost(probs[2], 0.01) || probs[3] != 0 {
		t.Errorf("single factor: expected [0.08 0.01 0], actual %v", probs[1:])
	}
}

func TestMGLExpansion(t *testing.T) {
	m := &Model{
		Name: "mgl",
		Top:  "top",
		Gates: []*Gate{
			{Name: "top", Formula: Formula{Op: OpAnd, Args: []string{"P1", "P2", "P3"}}},
		},
		BasicEvents: []*BasicEvent{
			{Name: "P1", Prob: 0.1},
			{Name: "P2", Prob: 0.1},
			{Name: "P3", Prob: 0.1},
		},
		CCFGroups: []*CCFGroup{{
			Name:    "grp",
			Model:   MGL,
			Members: []string{"P1", "P2", "P3"},
			Q:       0.1,
			Factors: []float64{0.2},
		}},
	}
	m.ExpandCCF()
	// every pair but not the whole group
	if m.BasicEvent("[P1 P2]") == nil || m.BasicEvent("[P1 P3]") == nil || m.BasicEvent("[P2 P3]") == nil {
		t.Errorf("missing pair failure events")
	}
	if m.BasicEvent("[P1 P2 P3]") != nil {
		t.Errorf("whole-group event generated with a null probability")
	}
	g := m.Gate("P2")
	if g == nil {
		t.Fatalf("member P2: expected a gate")
	}
	if diff := cmp.Diff([]string{"[P2]", "[P1 P2]", "[P2 P3]"}, g.Formula.Args); diff != "" {
		t.Errorf("member gate arguments mismatch (-expected +actual):\n%s", diff)
	}
}

func TestCombinations(t *testing.T) {
	got := combinations([]string{"a", "b", "c", "d"}, 2)
	expected := [][]string{
		{"a", "b"}, {"a", "c"}, {"a", "d"},
		{"b", "c"}, {"b", "d"}, {"c", "d"},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("combinations mismatch (-expected +actual):\n%s", diff)
	}
	if n := choose(5, 2); n != 10 {
		t.Errorf("C(5, 2): expected 10, actual %d", n)
	}
}
