// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package mef

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Common-cause failure models.
const (
	BetaFactor = "beta-factor"
	MGL        = "MGL"
)

// CCFGroup is a common-cause failure group: a set of basic events that can
// fail together, with a parametric model splitting the total failure
// probability of each member between independent and common failures.
//
// Factors holds the model parameters by increasing level: the single beta for
// the beta-factor model, then beta, gamma, delta and so on for MGL.
type CCFGroup struct {
	Name    string
	Model   string
	Members []string
	Q       float64
	Factors []float64
}

func (grp *CCFGroup) validate(m *Model) error {
	if grp.Model != BetaFactor && grp.Model != MGL {
		return errors.Errorf("CCF group %q uses unknown model %q", grp.Name, grp.Model)
	}
	if len(grp.Members) < 2 {
		return errors.Errorf("CCF group %q has %d members, need at least two", grp.Name, len(grp.Members))
	}
	seen := make(map[string]bool)
	for _, name := range grp.Members {
		if seen[name] {
			return errors.Errorf("CCF group %q lists member %q twice", grp.Name, name)
		}
		seen[name] = true
		if m.BasicEvent(name) == nil {
			return errors.Errorf("CCF group %q member %q is not a basic event", grp.Name, name)
		}
	}
	if grp.Q < 0 || grp.Q > 1 {
		return errors.Errorf("CCF group %q has total probability %g outside [0, 1]", grp.Name, grp.Q)
	}
	switch grp.Model {
	case BetaFactor:
		if len(grp.Factors) != 1 {
			return errors.Errorf("CCF group %q needs exactly one factor, got %d", grp.Name, len(grp.Factors))
		}
	case MGL:
		if len(grp.Factors) < 1 || len(grp.Factors) > len(grp.Members)-1 {
			return errors.Errorf("CCF group %q has %d factors for %d members", grp.Name, len(grp.Factors), len(grp.Members))
		}
	}
	for _, f := range grp.Factors {
		if f < 0 || f > 1 {
			return errors.Errorf("CCF group %q has factor %g outside [0, 1]", grp.Name, f)
		}
	}
	return nil
}

// ExpandCCF rewrites every common-cause group of the model: each member
// becomes a gate collecting one generated basic event per failure combination
// the member takes part in, with probabilities derived from the group model.
// The model must have been validated.
func (m *Model) ExpandCCF() {
	for _, grp := range m.CCFGroups {
		grp.expand(m)
	}
	m.CCFGroups = nil
}

func (grp *CCFGroup) expand(m *Model) {
	n := len(grp.Members)
	probs := grp.levelProbs(n)
	formulas := make(map[string][]string, n)
	for k := 1; k <= n; k++ {
		if probs[k] <= 0 {
			continue
		}
		for _, sub := range combinations(grp.Members, k) {
			name := fmt.Sprintf("[%s]", strings.Join(sub, " "))
			m.BasicEvents = append(m.BasicEvents, &BasicEvent{Name: name, Prob: probs[k]})
			for _, member := range sub {
				formulas[member] = append(formulas[member], name)
			}
		}
	}
	for _, member := range grp.Members {
		for i, e := range m.BasicEvents {
			if e.Name == member {
				m.BasicEvents = append(m.BasicEvents[:i], m.BasicEvents[i+1:]...)
				break
			}
		}
		args := formulas[member]
		op := OpOr
		if len(args) == 1 {
			op = OpNull
		}
		m.Gates = append(m.Gates, &Gate{Name: member, Formula: Formula{Op: op, Args: args}})
	}
}

// levelProbs returns the probability of a failure combination of each order,
// indexed from 1 to n.
//
// For the beta-factor model only single failures and the failure of the
// whole group have a positive probability. For MGL the probability of an
// order-k combination is Q * (g_1 ... g_k) * (1 - g_{k+1}) / C(n-1, k-1)
// with g_1 = 1 and the factors giving g_2, g_3 and so on.
func (grp *CCFGroup) levelProbs(n int) []float64 {
	probs := make([]float64, n+1)
	if grp.Model == BetaFactor {
		beta := grp.Factors[0]
		probs[1] = (1 - beta) * grp.Q
		probs[n] = beta * grp.Q
		return probs
	}
	factor := func(k int) float64 {
		if k == 1 {
			return 1
		}
		if k-2 < len(grp.Factors) {
			return grp.Factors[k-2]
		}
		return 0
	}
	for k := 1; k <= n; k++ {
		mult := 1.0
		for i := 1; i <= k; i++ {
			mult *= factor(i)
		}
		next := 0.0
		if k < n {
			next = factor(k + 1)
		}
		probs[k] = grp.Q * mult * (1 - next) / float64(choose(n-1, k-1))
	}
	return probs
}

// choose returns the binomial coefficient C(n, k).
func choose(n, k int) int {
	if k > n-k {
		k = n - k
	}
	res := 1
	for i := 0; i < k; i++ {
		res = res * (n - i) / (i + 1)
	}
	return res
}

// combinations returns every subset of size k of the given names, keeping the
// original order inside each subset.
func combinations(names []string, k int) [][]string {
	var res [][]string
	sub := make([]string, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(sub) == k {
			res = append(res, append([]string(nil), sub...))
			return
		}
		for i := start; i <= len(names)-(k-len(sub)); i++ {
			sub = append(sub, names[i])
			rec(i + 1)
			sub = sub[:len(sub)-1]
		}
	}
	rec(0)
	return res
}
