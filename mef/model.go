// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

// Package mef implements a subset of the Open-PSA Model Exchange Format:
// fault-tree models with basic events, house events, gates and common-cause
// failure groups, together with their XML representation.
package mef

import (
	"github.com/pkg/errors"
)

// Op is the logical connective of a formula.
type Op int

const (
	// OpAnd is the conjunction of all the arguments.
	OpAnd Op = iota
	// OpOr is the disjunction of all the arguments.
	OpOr
	// OpAtleast is true when at least K arguments are true.
	OpAtleast
	// OpXor is the exclusive disjunction of two arguments.
	OpXor
	// OpNot is the negation of a single argument.
	OpNot
	// OpNand is the negated conjunction.
	OpNand
	// OpNor is the negated disjunction.
	OpNor
	// OpNull is a pass-through with a single argument.
	OpNull
)

func (op Op) String() string {
	switch op {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpAtleast:
		return "atleast"
	case OpXor:
		return "xor"
	case OpNot:
		return "not"
	case OpNand:
		return "nand"
	case OpNor:
		return "nor"
	case OpNull:
		return "null"
	}
	return "unknown"
}

// BasicEvent is a leaf of a fault tree carrying a failure probability.
type BasicEvent struct {
	Name string
	Prob float64
}

// HouseEvent is a leaf with a fixed Boolean state.
type HouseEvent struct {
	Name  string
	State bool
}

// Formula is the Boolean expression of a gate. Arguments reference basic
// events, house events or other gates by name; nested expressions are
// represented with intermediate gates.
type Formula struct {
	Op   Op
	K    int // minimum number for OpAtleast
	Args []string
}

// Gate is a named inner vertex of a fault tree.
type Gate struct {
	Name    string
	Formula Formula
}

// Model is a fault-tree model: a named collection of events and gates with a
// distinguished top gate.
type Model struct {
	Name        string
	Top         string
	Gates       []*Gate
	BasicEvents []*BasicEvent
	HouseEvents []*HouseEvent
	CCFGroups   []*CCFGroup
}

// Gate returns the gate with the given name, or nil.
func (m *Model) Gate(name string) *Gate {
	for _, g := range m.Gates {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// BasicEvent returns the basic event with the given name, or nil.
func (m *Model) BasicEvent(name string) *BasicEvent {
	for _, e := range m.BasicEvents {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// HouseEvent returns the house event with the given name, or nil.
func (m *Model) HouseEvent(name string) *HouseEvent {
	for _, e := range m.HouseEvents {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Validate checks the static semantics of the model: unique names, resolvable
// references, probabilities in [0, 1], connective arities and acyclicity of
// the gate graph.
func (m *Model) Validate() error {
	names := make(map[string]string)
	declare := func(name, kind string) error {
		if name == "" {
			return errors.Errorf("unnamed %s in model %q", kind, m.Name)
		}
		if prev, ok := names[name]; ok {
			return errors.Errorf("name %q declared as both %s and %s", name, prev, kind)
		}
		names[name] = kind
		return nil
	}
	for _, e := range m.BasicEvents {
		if err := declare(e.Name, "basic event"); err != nil {
			return err
		}
		if e.Prob < 0 || e.Prob > 1 {
			return errors.Errorf("basic event %q has probability %g outside [0, 1]", e.Name, e.Prob)
		}
	}
	for _, e := range m.HouseEvents {
		if err := declare(e.Name, "house event"); err != nil {
			return err
		}
	}
	for _, g := range m.Gates {
		if err := declare(g.Name, "gate"); err != nil {
			return err
		}
	}
	for _, g := range m.Gates {
		if err := m.validateFormula(g); err != nil {
			return err
		}
	}
	if m.Top == "" {
		return errors.Errorf("model %q has no top gate", m.Name)
	}
	if m.Gate(m.Top) == nil {
		return errors.Errorf("top gate %q is not defined in model %q", m.Top, m.Name)
	}
	for _, grp := range m.CCFGroups {
		if err := grp.validate(m); err != nil {
			return err
		}
	}
	return m.checkAcyclic()
}

func (m *Model) validateFormula(g *Gate) error {
	f := &g.Formula
	n := len(f.Args)
	switch f.Op {
	case OpNot, OpNull:
		if n != 1 {
			return errors.Errorf("%s gate %q has %d arguments instead of one", f.Op, g.Name, n)
		}
	case OpXor:
		if n != 2 {
			return errors.Errorf("xor gate %q has %d arguments instead of two", g.Name, n)
		}
	case OpAtleast:
		if f.K < 1 || f.K > n {
			return errors.Errorf("atleast gate %q has minimum number %d for %d arguments", g.Name, f.K, n)
		}
	default:
		if n < 1 {
			return errors.Errorf("%s gate %q has no argument", f.Op, g.Name)
		}
	}
	seen := make(map[string]bool)
	for _, a := range f.Args {
		if seen[a] {
			return errors.Errorf("gate %q references %q twice", g.Name, a)
		}
		seen[a] = true
		if m.Gate(a) == nil && m.BasicEvent(a) == nil && m.HouseEvent(a) == nil {
			return errors.Errorf("gate %q references undefined name %q", g.Name, a)
		}
	}
	return nil
}

// checkAcyclic rejects gate graphs with a cycle through gate references.
func (m *Model) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var visit func(g *Gate) error
	visit = func(g *Gate) error {
		color[g.Name] = grey
		for _, a := range g.Formula.Args {
			sub := m.Gate(a)
			if sub == nil {
				continue
			}
			switch color[sub.Name] {
			case grey:
				return errors.Errorf("gate %q is part of a cycle through %q", g.Name, sub.Name)
			case white:
				if err := visit(sub); err != nil {
					return err
				}
			}
		}
		color[g.Name] = black
		return nil
	}
	for _, g := range m.Gates {
		if color[g.Name] == white {
			if err := visit(g); err != nil {
				return err
			}
		}
	}
	return nil
}
