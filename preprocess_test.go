// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// checkNormalForm verifies the postcondition of the pipeline on every gate
// reachable from the root: only AND and OR connectives, no constant
// arguments, no collapsed gate left in argument position.
func checkNormalForm(t *testing.T, g *Graph) {
	t.Helper()
	seen := make(map[int]bool)
	var rec func(gate *Gate)
	rec = func(gate *Gate) {
		if seen[gate.Index()] {
			return
		}
		seen[gate.Index()] = true
		if gate.Op() != OpAnd && gate.Op() != OpOr {
			t.Errorf("gate G%d has connective %s after preprocessing", gate.Index(), gate.Op())
		}
		if gate.IsConstant() {
			t.Errorf("gate G%d is a collapsed gate in argument position", gate.Index())
		}
		if len(gate.ConstArgs()) != 0 {
			t.Errorf("gate G%d keeps a constant argument", gate.Index())
		}
		for _, sub := range gate.GateArgs() {
			rec(sub)
		}
	}
	if !g.Root().IsConstant() {
		rec(g.Root())
	}
}

//********************************************************************************************

func TestPreprocessConstantTop(t *testing.T) {
	// a collapsed subgate propagates into the root
	g := NewGraph(1)
	sub := g.NewGate(OpNot)
	sub.AddArg(g.TrueConstant().Index(), g.TrueConstant())
	root := g.NewGate(OpAnd)
	root.AddArg(1, g.Variable(1))
	root.AddArg(sub.Index(), sub)
	g.SetRoot(root)
	warnings, err := Preprocess(context.Background(), g)
	if err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	if !root.IsConstant() || root.ConstantValue() {
		t.Errorf("and gate over a false subgate: expected constant false")
	}
	if diff := cmp.Diff([]string{"the top gate is constant false"}, warnings); diff != "" {
		t.Errorf("warnings mismatch (-expected +actual):\n%s", diff)
	}

	g = NewGraph(1)
	root = g.NewGate(OpNull)
	root.AddArg(g.TrueConstant().Index(), g.TrueConstant())
	g.SetRoot(root)
	warnings, err = Preprocess(context.Background(), g)
	if err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	if !root.IsConstant() || !root.ConstantValue() {
		t.Errorf("pass-through gate over true: expected constant true")
	}
	if diff := cmp.Diff([]string{"the top gate is constant true"}, warnings); diff != "" {
		t.Errorf("warnings mismatch (-expected +actual):\n%s", diff)
	}
}

func TestPreprocessNegatedRoot(t *testing.T) {
	g := NewGraph(1)
	root := g.NewGate(OpNot)
	root.AddArg(1, g.Variable(1))
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.Op() != OpOr || !top.HasArg(-1) || top.NumArgs() != 1 {
		t.Errorf("negated root: expected or gate over {-1}, actual %s gate over %v", top.Op(), top.Args())
	}
	if g.Coherent() {
		t.Errorf("negated root: the graph cannot be coherent")
	}
	checkNormalForm(t, g)
}

func TestPreprocessDeMorgan(t *testing.T) {
	// AND(x, NAND(y, z)) becomes AND(x, OR(not y, not z))
	g := NewGraph(3)
	nand := g.NewGate(OpNand)
	nand.AddArg(2, g.Variable(2))
	nand.AddArg(3, g.Variable(3))
	root := g.NewGate(OpAnd)
	root.AddArg(1, g.Variable(1))
	root.AddArg(nand.Index(), nand)
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.Op() != OpAnd || top.NumArgs() != 2 || !top.HasArg(1) {
		t.Fatalf("expected and gate over x and a complement, actual %s gate over %v", top.Op(), top.Args())
	}
	for _, comp := range top.GateArgs() {
		if comp.Op() != OpOr || !comp.HasArg(-2) || !comp.HasArg(-3) {
			t.Errorf("complement of the nand: expected or gate over {-2, -3}, actual %s gate over %v", comp.Op(), comp.Args())
		}
	}
	if g.Coherent() || !g.Normal() {
		t.Errorf("expected a normal, non-coherent graph")
	}
	checkNormalForm(t, g)
}

func TestPreprocessXorExpansion(t *testing.T) {
	g := NewGraph(2)
	root := g.NewGate(OpXor)
	root.AddArg(1, g.Variable(1))
	root.AddArg(2, g.Variable(2))
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.Op() != OpOr || len(top.GateArgs()) != 2 {
		t.Fatalf("expanded xor: expected an or over two conjunctions, actual %s gate over %v", top.Op(), top.Args())
	}
	for _, sub := range top.GateArgs() {
		if sub.Op() != OpAnd || sub.NumArgs() != 2 {
			t.Errorf("branch of the expanded xor: expected a binary and gate, actual %s gate over %v", sub.Op(), sub.Args())
			continue
		}
		pos, neg := 0, 0
		for _, a := range sub.Args() {
			if a > 0 {
				pos++
			} else {
				neg++
			}
		}
		if pos != 1 || neg != 1 {
			t.Errorf("branch of the expanded xor: expected one literal of each sign, actual %v", sub.Args())
		}
	}
	if g.Coherent() {
		t.Errorf("expanded xor: the graph cannot be coherent")
	}
	checkNormalForm(t, g)
}

func TestPreprocessVoteExpansion(t *testing.T) {
	// ATLEAST(2, {x, y, z}) becomes OR(AND(x, OR(y, z)), AND(y, z))
	g := NewGraph(3)
	root := g.NewVoteGate(2)
	root.AddArg(1, g.Variable(1))
	root.AddArg(2, g.Variable(2))
	root.AddArg(3, g.Variable(3))
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.Op() != OpOr || len(top.GateArgs()) != 2 {
		t.Fatalf("expanded vote: expected an or over two conjunctions, actual %s gate over %v", top.Op(), top.Args())
	}
	for _, sub := range top.GateArgs() {
		if sub.Op() != OpAnd {
			t.Errorf("branch of the expanded vote: expected an and gate, actual %s", sub.Op())
			continue
		}
		switch len(sub.GateArgs()) {
		case 0:
			if !sub.HasArg(2) || !sub.HasArg(3) {
				t.Errorf("second branch of the vote: expected {2, 3}, actual %v", sub.Args())
			}
		case 1:
			if !sub.HasArg(1) {
				t.Errorf("first branch of the vote: expected x among %v", sub.Args())
			}
			for _, or := range sub.GateArgs() {
				if or.Op() != OpOr || !or.HasArg(2) || !or.HasArg(3) {
					t.Errorf("rest of the vote: expected or gate over {2, 3}, actual %s gate over %v", or.Op(), or.Args())
				}
				// the shared variables keep the inner gates out of module status
				if or.IsModule() {
					t.Errorf("gate G%d over shared variables must not be a module", or.Index())
				}
			}
		}
		if sub.IsModule() {
			t.Errorf("gate G%d over shared variables must not be a module", sub.Index())
		}
	}
	if !top.IsModule() {
		t.Errorf("the root is always a module")
	}
	checkNormalForm(t, g)
}

func TestPreprocessAbsorption(t *testing.T) {
	// A and (A or B) is A; the root is rebuilt as a gate over the survivor
	g := NewGraph(2)
	or := g.NewGate(OpOr)
	or.AddArg(1, g.Variable(1))
	or.AddArg(2, g.Variable(2))
	root := g.NewGate(OpAnd)
	root.AddArg(1, g.Variable(1))
	root.AddArg(or.Index(), or)
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.Op() != OpOr || top.NumArgs() != 1 || !top.HasArg(1) {
		t.Errorf("absorption: expected a gate over {1}, actual %s gate over %v", top.Op(), top.Args())
	}
	checkNormalForm(t, g)
}

func TestPreprocessCoalesce(t *testing.T) {
	// an or inside an or with a single parent is absorbed
	g := NewGraph(3)
	inner := g.NewGate(OpOr)
	inner.AddArg(2, g.Variable(2))
	inner.AddArg(3, g.Variable(3))
	root := g.NewGate(OpOr)
	root.AddArg(1, g.Variable(1))
	root.AddArg(inner.Index(), inner)
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.NumArgs() != 3 || !top.HasArg(1) || !top.HasArg(2) || !top.HasArg(3) {
		t.Errorf("coalescing: expected arguments {1, 2, 3}, actual %v", top.Args())
	}

	// an and inside an or keeps its own gate
	g = NewGraph(3)
	and := g.NewGate(OpAnd)
	and.AddArg(2, g.Variable(2))
	and.AddArg(3, g.Variable(3))
	root = g.NewGate(OpOr)
	root.AddArg(1, g.Variable(1))
	root.AddArg(and.Index(), and)
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top = g.Root()
	if top.NumArgs() != 2 || len(top.GateArgs()) != 1 {
		t.Errorf("mixed connectives: expected x and one gate argument, actual %v", top.Args())
	}
}

func TestPreprocessNullSplice(t *testing.T) {
	g := NewGraph(3)
	m1 := g.NewGate(OpAnd)
	m1.AddArg(1, g.Variable(1))
	m1.AddArg(2, g.Variable(2))
	m2 := g.NewGate(OpNull)
	m2.AddArg(3, g.Variable(3))
	root := g.NewGate(OpOr)
	root.AddArg(m1.Index(), m1)
	root.AddArg(m2.Index(), m2)
	g.SetRoot(root)
	if _, err := Preprocess(context.Background(), g); err != nil {
		t.Fatalf("preprocessing: %s", err)
	}
	top := g.Root()
	if top.NumArgs() != 2 || !top.HasArg(3) || !top.HasArg(m1.Index()) {
		t.Errorf("splicing: expected arguments {3, G%d}, actual %v", m1.Index(), top.Args())
	}
	if !m1.IsModule() {
		t.Errorf("gate G%d over private variables must be a module", m1.Index())
	}
	if !g.Coherent() || !g.Normal() {
		t.Errorf("expected a coherent, normal graph")
	}
	checkNormalForm(t, g)
}

func TestPreprocessCancel(t *testing.T) {
	g := NewGraph(1)
	root := g.NewGate(OpOr)
	root.AddArg(1, g.Variable(1))
	g.SetRoot(root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Preprocess(ctx, g); err == nil {
		t.Errorf("preprocessing with a cancelled context: expected an error")
	}
}
