// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// preprocessor applies the normalization pipeline to a Graph in place. Every
// pass preserves the Boolean semantics of the graph and is idempotent on its
// own postcondition.
type preprocessor struct {
	g        *Graph
	warnings []string
}

// Preprocess rewrites the graph until it contains only AND and OR gates, with
// complements on variables only, and with independent modules marked. It
// returns the warnings gathered along the way, for instance when the top gate
// reduces to a constant.
func Preprocess(ctx context.Context, g *Graph) (warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(error); ok && IsLogic(le) {
				err = errors.Wrap(le, "preprocessing")
				return
			}
			panic(r)
		}
	}()
	pp := &preprocessor{g: g}
	phases := []struct {
		name string
		run  func()
	}{
		{"constant propagation", pp.propagateConstants},
		{"normalization", pp.normalize},
		{"null gate removal", pp.removeNullGates},
		{"coalescing", pp.coalesce},
		{"boolean optimization", pp.optimize},
		{"module detection", pp.detectModules},
		{"final flags", pp.gatherFlags},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if g.root == nil || g.root.IsConstant() {
			break
		}
		klog.V(2).Infof("preprocessing: %s", ph.name)
		ph.run()
		if klog.V(5).Enabled() {
			klog.Infof("root arguments after %s: %s", ph.name, spew.Sdump(g.root.Args()))
		}
	}
	if g.root != nil && g.root.IsConstant() {
		if g.root.ConstantValue() {
			pp.warn("the top gate is constant true")
		} else {
			pp.warn("the top gate is constant false")
		}
	}
	return pp.warnings, nil
}

func (pp *preprocessor) warn(msg string) {
	pp.warnings = append(pp.warnings, msg)
}

// ----------------------------------------------------------------------
// Pass 1: constant propagation. Constants and collapsed gates are absorbed
// into their parents, bottom up.

func (pp *preprocessor) propagateConstants() {
	pp.propagateConstantsIn(pp.g.root)
	pp.g.clearMarks()
}

func (pp *preprocessor) propagateConstantsIn(gate *Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	for _, s := range gate.Args() {
		if gate.state != stateNormal {
			return
		}
		if !gate.HasArg(s) {
			// erased by a previous absorption
			continue
		}
		switch n := gate.argNode(abs(s)).(type) {
		case *Gate:
			pp.propagateConstantsIn(n)
			if n.IsConstant() {
				pp.processConstantArg(gate, s, n.ConstantValue() != (s < 0))
			}
		case *Constant:
			pp.processConstantArg(gate, s, n.value != (s < 0))
		}
	}
}

// processConstantArg removes a constant argument from the gate, collapsing
// the gate when the constant is absorbing for its connective.
func (pp *preprocessor) processConstantArg(gate *Gate, s int, val bool) {
	switch gate.op {
	case OpAnd:
		if !val {
			gate.Nullify()
			return
		}
		gate.EraseArg(s)
		if len(gate.args) == 0 {
			gate.MakeUnity()
		}
	case OpNand:
		if !val {
			gate.MakeUnity()
			return
		}
		gate.EraseArg(s)
		if len(gate.args) == 0 {
			gate.Nullify()
		}
	case OpOr:
		if val {
			gate.MakeUnity()
			return
		}
		gate.EraseArg(s)
		if len(gate.args) == 0 {
			gate.Nullify()
		}
	case OpNor:
		if val {
			gate.Nullify()
			return
		}
		gate.EraseArg(s)
		if len(gate.args) == 0 {
			gate.MakeUnity()
		}
	case OpXor:
		gate.EraseArg(s)
		if val {
			gate.op = OpNot
		} else {
			gate.op = OpNull
		}
		if len(gate.args) == 0 {
			panic(logicf("xor gate G%d lost all its arguments", gate.index))
		}
	case OpAtleast:
		gate.EraseArg(s)
		if val {
			gate.k--
		}
		gate.reduceVote()
	case OpNot:
		if val {
			gate.Nullify()
		} else {
			gate.MakeUnity()
		}
	case OpNull:
		if val {
			gate.MakeUnity()
		} else {
			gate.Nullify()
		}
	}
}

// ----------------------------------------------------------------------
// Pass 2: normalization to negation normal form. Negated connectives (NOT,
// NAND, NOR) turn into sign flips on the parent side, complemented gate
// references are rewritten with De Morgan complements, and XOR and ATLEAST
// gates are expanded into AND/OR combinations.

func (pp *preprocessor) normalize() {
	g := pp.g
	// a pass-through root lets the sign flips below apply to the top gate too
	if g.root.op == OpNot || g.root.op == OpNand || g.root.op == OpNor {
		wrapper := g.NewGate(OpNull)
		wrapper.AddArg(g.root.index, g.root)
		g.SetRoot(wrapper)
	}
	pp.notifyNegativeGates(g.root)
	g.clearMarks()
	pp.convertNegativeTypes(g.root)
	g.clearMarks()
	comps := make(map[int]*Gate)
	pp.pushComplements(g.root, comps)
	g.clearMarks()
	pp.expandGates(g.root)
	g.clearMarks()
	pp.propagateConstants()
}

// notifyNegativeGates flips the sign of every reference to a NOT, NAND or NOR
// gate, so that the connective can then be replaced by its positive dual.
func (pp *preprocessor) notifyNegativeGates(gate *Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	for _, s := range gate.Args() {
		sub, ok := gate.gates[abs(s)]
		if !ok {
			continue
		}
		pp.notifyNegativeGates(sub)
		switch sub.op {
		case OpNot, OpNand, OpNor:
			gate.InvertArg(s)
		}
	}
}

func (pp *preprocessor) convertNegativeTypes(gate *Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	switch gate.op {
	case OpNot:
		gate.op = OpNull
	case OpNand:
		gate.op = OpAnd
	case OpNor:
		gate.op = OpOr
	}
	for _, sub := range gate.gates {
		pp.convertNegativeTypes(sub)
	}
}

// pushComplements replaces every negative gate reference with a positive
// reference to the De Morgan complement of the gate. Complements are shared
// through the comps table so that a gate complemented twice is built once.
func (pp *preprocessor) pushComplements(gate *Gate, comps map[int]*Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	for _, s := range gate.Args() {
		sub, ok := gate.gates[abs(s)]
		if !ok {
			continue
		}
		if s < 0 {
			comp := pp.complementOf(sub, comps)
			gate.EraseArg(s)
			gate.AddArg(comp.index, comp)
			sub = comp
		}
		pp.pushComplements(sub, comps)
	}
}

func (pp *preprocessor) complementOf(gate *Gate, comps map[int]*Gate) *Gate {
	if c, ok := comps[gate.index]; ok {
		return c
	}
	g := pp.g
	var comp *Gate
	switch gate.op {
	case OpAnd:
		comp = g.NewGate(OpOr)
	case OpOr:
		comp = g.NewGate(OpAnd)
	case OpAtleast:
		// not ATLEAST(k, n args) is ATLEAST(n-k+1) over the complements
		comp = g.NewVoteGate(len(gate.args) - gate.k + 1)
	case OpNull:
		comp = g.NewGate(OpNull)
	case OpXor:
		// the complement of a xor inverts exactly one argument
		comp = g.NewGate(OpXor)
		first := true
		for _, a := range gate.Args() {
			if first {
				comp.AddArg(-a, gate.argNode(abs(a)))
				first = false
				continue
			}
			comp.AddArg(a, gate.argNode(abs(a)))
		}
		comps[gate.index] = comp
		comps[comp.index] = gate
		return comp
	default:
		panic(logicf("complementing %s gate G%d", gate.op, gate.index))
	}
	for _, a := range gate.Args() {
		if comp.AddArg(-a, gate.argNode(abs(a))) {
			break
		}
	}
	comp.reduceVote()
	comps[gate.index] = comp
	comps[comp.index] = gate
	return comp
}

// expandGates rewrites XOR and ATLEAST gates into AND/OR combinations.
func (pp *preprocessor) expandGates(gate *Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	switch gate.op {
	case OpXor:
		pp.expandXor(gate)
	case OpAtleast:
		pp.expandVote(gate)
	}
	for _, s := range gate.Args() {
		if sub, ok := gate.gates[abs(s)]; ok {
			pp.expandGates(sub)
		}
	}
}

// expandXor rewrites XOR(a, b) into OR(AND(a, not b), AND(not a, b)).
func (pp *preprocessor) expandXor(gate *Gate) {
	args := gate.Args()
	if len(args) != 2 {
		panic(logicf("xor gate G%d has %d arguments", gate.index, len(args)))
	}
	a, b := args[0], args[1]
	na, nb := gate.argNode(abs(a)), gate.argNode(abs(b))
	g := pp.g
	gate.EraseAllArgs()
	gate.op = OpOr
	left := g.NewGate(OpAnd)
	left.AddArg(a, na)
	left.AddArg(-b, nb)
	right := g.NewGate(OpAnd)
	right.AddArg(-a, na)
	right.AddArg(b, nb)
	gate.AddArg(left.index, left)
	gate.AddArg(right.index, right)
}

// expandVote rewrites ATLEAST(k, [x|rest]) into
// OR(AND(x, ATLEAST(k-1, rest)), ATLEAST(k, rest)), recursively through the
// vote gates this creates.
func (pp *preprocessor) expandVote(gate *Gate) {
	g := pp.g
	args := gate.Args()
	k := gate.k
	x := args[0]
	xn := gate.argNode(abs(x))
	rest := args[1:]
	restNodes := make([]node, len(rest))
	for i, a := range rest {
		restNodes[i] = gate.argNode(abs(a))
	}
	gate.EraseAllArgs()
	gate.op = OpOr
	gate.k = 0
	// first branch: AND(x, ATLEAST(k-1, rest))
	if k-1 <= 0 {
		gate.AddArg(x, xn)
	} else if k-1 <= len(rest) {
		branch := g.NewGate(OpAnd)
		branch.AddArg(x, xn)
		if sub := g.newVote(k-1, rest, restNodes); sub != nil {
			if sub.op == OpAtleast {
				pp.expandVote(sub)
			}
			branch.AddArg(sub.index, sub)
		}
		if !branch.IsConstant() {
			gate.AddArg(branch.index, branch)
		} else if branch.ConstantValue() {
			gate.MakeUnity()
			return
		}
	}
	// second branch: ATLEAST(k, rest), constant false when k > |rest|
	if k <= len(rest) {
		if sub := g.newVote(k, rest, restNodes); sub != nil {
			if sub.op == OpAtleast {
				pp.expandVote(sub)
			}
			if gate.AddArg(sub.index, sub) {
				return
			}
		} else {
			gate.MakeUnity()
			return
		}
	}
	if len(gate.args) == 0 {
		gate.Nullify()
	}
}

// ----------------------------------------------------------------------
// Pass 3: splice single-argument pass-through gates into their parents.

func (pp *preprocessor) removeNullGates() {
	pp.spliceNull(pp.g.root)
	pp.g.clearMarks()
	// the root itself may be a pass-through
	root := pp.g.root
	for root.op == OpNull && !root.IsConstant() {
		args := root.Args()
		if len(args) != 1 {
			panic(logicf("pass-through root G%d has %d arguments", root.index, len(args)))
		}
		if sub, ok := root.gates[abs(args[0])]; ok && args[0] > 0 {
			root.EraseAllArgs()
			pp.g.SetRoot(sub)
			root = sub
			continue
		}
		// a single (possibly negated) variable: keep a normal gate on top
		root.op = OpOr
	}
	pp.propagateConstants()
}

func (pp *preprocessor) spliceNull(gate *Gate) {
	if gate.mark {
		return
	}
	gate.mark = true
	for _, s := range gate.Args() {
		sub, ok := gate.gates[abs(s)]
		if !ok {
			continue
		}
		pp.spliceNull(sub)
		if gate.state != stateNormal {
			return
		}
		if !gate.HasArg(s) {
			continue
		}
		if sub.op == OpNull && !sub.IsConstant() && len(sub.args) == 1 {
			if gate.JoinNullGate(s) {
				return
			}
		}
	}
}

// ----------------------------------------------------------------------
// Pass 4: coalesce same-connective gates. An AND inside an AND (or an OR
// inside an OR) is absorbed into its parent when the child has no other
// parent.

func (pp *preprocessor) coalesce() {
	for changed := true; changed; {
		changed = pp.coalesceIn(pp.g.root)
		pp.g.clearMarks()
		if pp.g.root.IsConstant() {
			return
		}
	}
	pp.propagateConstants()
}

func (pp *preprocessor) coalesceIn(gate *Gate) bool {
	if gate.mark {
		return false
	}
	gate.mark = true
	changed := false
	for _, s := range gate.Args() {
		sub, ok := gate.gates[abs(s)]
		if !ok {
			continue
		}
		if pp.coalesceIn(sub) {
			changed = true
		}
		if gate.state != stateNormal {
			return changed
		}
		if !gate.HasArg(s) {
			continue
		}
		if s > 0 && sub.op == gate.op && (gate.op == OpAnd || gate.op == OpOr) &&
			sub.state == stateNormal && len(sub.Parents()) == 1 {
			changed = true
			if gate.JoinGate(sub) {
				return true
			}
		}
	}
	return changed
}

// ----------------------------------------------------------------------
// Pass 5: absorption. In a conjunction, a disjunctive argument that contains
// one of the other arguments is redundant: A and (A or B) is A. Dually for a
// disjunction over conjunctions.

func (pp *preprocessor) optimize() {
	changed := pp.absorbIn(pp.g.root)
	pp.g.clearMarks()
	if changed {
		pp.removeNullGates()
		pp.g.clearMarks()
		if !pp.g.root.IsConstant() {
			pp.coalesce()
			pp.g.clearMarks()
		}
	}
}

func (pp *preprocessor) absorbIn(gate *Gate) bool {
	if gate.mark {
		return false
	}
	gate.mark = true
	changed := false
	if gate.op == OpAnd || gate.op == OpOr {
		var dual GateOp = OpOr
		if gate.op == OpOr {
			dual = OpAnd
		}
		// tag the direct arguments of the gate with a signed marker
		for _, a := range gate.Args() {
			gate.argNode(abs(a)).base().opti = sign(a) * gate.index
		}
		for _, s := range gate.Args() {
			sub, ok := gate.gates[abs(s)]
			if !ok || s < 0 || sub.op != dual {
				continue
			}
			for _, b := range sub.Args() {
				n := sub.argNode(abs(b))
				if n != nil && n.base().opti == sign(b)*gate.index && abs(b) != abs(s) {
					gate.EraseArg(s)
					changed = true
					break
				}
			}
		}
		if len(gate.args) == 1 {
			gate.op = OpNull
			changed = true
		}
	}
	for _, sub := range gate.gates {
		if pp.absorbIn(sub) {
			changed = true
		}
	}
	return changed
}

// ----------------------------------------------------------------------
// Pass 6: module detection. A DFS assigns enter, exit and last-visit times to
// every vertex; a gate is an independent module exactly when the visit times
// of its whole subtree fall within its own enter and exit times.

func (pp *preprocessor) detectModules() {
	g := pp.g
	g.clearVisits()
	pp.assignTiming(0, g.root)
	pp.findModules(g.root)
	g.root.module = true
	if klog.V(3).Enabled() {
		var mods []int
		pp.collectModules(g.root, &mods)
		klog.Infof("detected %d module gates: %v", len(mods), mods)
	}
	g.clearMarks()
}

func (pp *preprocessor) assignTiming(t int, gate *Gate) int {
	t++
	if gate.Visit(t) {
		return t // revisit of a shared gate
	}
	for _, s := range gate.Args() {
		idx := abs(s)
		if sub, ok := gate.gates[idx]; ok {
			t = pp.assignTiming(t, sub)
			continue
		}
		t++
		gate.argNode(idx).base().Visit(t)
	}
	t++
	gate.Visit(t)
	return t
}

func (pp *preprocessor) findModules(gate *Gate) {
	if gate.mint != 0 {
		return
	}
	minT, maxT := gate.EnterTime(), gate.ExitTime()
	for _, s := range gate.Args() {
		idx := abs(s)
		var amin, amax int
		if sub, ok := gate.gates[idx]; ok {
			pp.findModules(sub)
			amin, amax = sub.mint, sub.maxt
			if lv := sub.LastVisit(); lv > amax {
				amax = lv
			}
		} else {
			n := gate.argNode(idx).base()
			amin, amax = n.EnterTime(), n.LastVisit()
		}
		if amin < minT {
			minT = amin
		}
		if amax > maxT {
			maxT = amax
		}
	}
	gate.mint, gate.maxt = minT, maxT
	gate.module = minT == gate.EnterTime() && maxT == gate.ExitTime()
}

func (pp *preprocessor) collectModules(gate *Gate, mods *[]int) {
	if gate.mark {
		return
	}
	gate.mark = true
	if gate.module {
		*mods = append(*mods, gate.index)
	}
	for _, sub := range gate.gates {
		pp.collectModules(sub, mods)
	}
}

// ----------------------------------------------------------------------
// Pass 7: final flags.

func (pp *preprocessor) gatherFlags() {
	g := pp.g
	g.coherent = true
	g.normal = true
	g.constants = false
	var rec func(gate *Gate)
	rec = func(gate *Gate) {
		if gate.mark {
			return
		}
		gate.mark = true
		if gate.op != OpAnd && gate.op != OpOr {
			g.normal = false
		}
		if len(gate.consts) > 0 {
			g.constants = true
		}
		for _, s := range gate.Args() {
			if s < 0 {
				g.coherent = false
			}
			if sub, ok := gate.gates[abs(s)]; ok {
				rec(sub)
			}
		}
	}
	rec(g.root)
	g.clearMarks()
}
