// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import "sort"

// cutsets is a container for families of cut sets during product generation.
// It pairs a preprocessed graph with a diagram arena and a literal order.
//
// The order places the placeholders of non-module gates first, then the
// placeholders of module gates, and finally the variable literals, two
// consecutive levels per variable (positive then complemented). With this
// order the smallest literal of a family is always a non-module gate
// placeholder when one remains, so finding the next gate to expand is a root
// inspection.
type cutsets struct {
	z       *zbdd
	g       *Graph
	limit   int             // maximal order of the generated sets
	gateLv  map[int]int32   // gate index to placeholder level
	lvGate  map[int32]*Gate // non-module placeholder levels
	lvMod   map[int32]*Gate // module placeholder levels
	varBase int32           // first variable level
}

// defaultSetNodes is the initial arena size used for cut-set generation.
const defaultSetNodes = 1 << 14

func newCutsets(g *Graph, limit int) *cutsets {
	if limit <= 0 {
		limit = unlimited
	}
	c := &cutsets{
		g:      g,
		limit:  limit,
		gateLv: make(map[int]int32),
		lvGate: make(map[int32]*Gate),
		lvMod:  make(map[int32]*Gate),
	}
	var plain, modular []*Gate
	seen := make(map[int]bool)
	var collect func(gate *Gate)
	collect = func(gate *Gate) {
		if seen[gate.Index()] {
			return
		}
		seen[gate.Index()] = true
		if gate.IsModule() {
			modular = append(modular, gate)
		} else {
			plain = append(plain, gate)
		}
		for _, sub := range gate.GateArgs() {
			collect(sub)
		}
	}
	if g.Root() != nil && !g.Root().IsConstant() {
		collect(g.Root())
	}
	sort.Slice(plain, func(i, j int) bool { return plain[i].Index() < plain[j].Index() })
	sort.Slice(modular, func(i, j int) bool { return modular[i].Index() < modular[j].Index() })
	lv := int32(0)
	for _, gate := range plain {
		c.gateLv[gate.Index()] = lv
		c.lvGate[lv] = gate
		lv++
	}
	for _, gate := range modular {
		c.gateLv[gate.Index()] = lv
		c.lvMod[lv] = gate
		lv++
	}
	c.varBase = lv
	c.z = newZbdd(defaultSetNodes, 0)
	return c
}

// varLevel returns the level of a signed variable literal.
func (c *cutsets) varLevel(lit int) int32 {
	lv := c.varBase + 2*int32(abs(lit)-1)
	if lit < 0 {
		lv++
	}
	return lv
}

// litAt returns the signed variable literal encoded at a level. The level
// must be in the variable range.
func (c *cutsets) litAt(lv int32) int {
	d := lv - c.varBase
	v := int(d/2) + 1
	if d%2 == 1 {
		return -v
	}
	return v
}

// argLevel returns the level of a signed gate argument. Gates always appear
// positively once the graph is in negation normal form.
func (c *cutsets) argLevel(gate *Gate, a int) int32 {
	if _, ok := gate.GateArgs()[abs(a)]; ok {
		if a < 0 {
			panic(logicf("complemented gate argument %d in gate G%d", a, gate.Index()))
		}
		return c.gateLv[a]
	}
	if _, ok := gate.VarArgs()[abs(a)]; ok {
		return c.varLevel(a)
	}
	panic(logicf("constant argument %d left in gate G%d", a, gate.Index()))
}

// convertGate returns the family of sets encoding a gate over its direct
// arguments: a single set for a conjunction, one singleton per argument for a
// disjunction. Only AND and OR gates remain after preprocessing.
func (c *cutsets) convertGate(gate *Gate) int {
	z := c.z
	levels := make([]int32, 0, gate.NumArgs())
	for _, a := range gate.Args() {
		levels = append(levels, c.argLevel(gate, a))
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	switch gate.Op() {
	case OpAnd:
		res := 1
		for i := len(levels) - 1; i >= 0; i-- {
			res = z.pushref(z.mknode(levels[i], res, 0))
		}
		z.popref(len(levels))
		return res
	case OpOr:
		res := 0
		for _, lv := range levels {
			s := z.pushref(z.single(lv))
			res = z.pushref(z.union(res, s))
		}
		z.popref(2 * len(levels))
		return res
	}
	panic(logicf("converting %s gate G%d to a set family", gate.Op(), gate.Index()))
}

// nextGate returns the non-module gate whose placeholder is the smallest
// literal of the family rooted at n, or nil when only module placeholders and
// variables remain. Placeholder levels sort below variable levels, so a root
// inspection is enough.
func (c *cutsets) nextGate(n int) *Gate {
	if n <= 1 {
		return nil
	}
	return c.lvGate[c.z.level(n)]
}

// expandTop substitutes the root placeholder of the family rooted at n with
// the local family of its gate: a cross-product against the sets holding the
// placeholder, a union with the others. The root placeholder must be a
// non-module gate.
func (c *cutsets) expandTop(n int) int {
	z := c.z
	gate := c.lvGate[z.level(n)]
	repl := z.pushref(c.convertGate(gate))
	high := z.pushref(z.product(repl, z.high(n), c.limit))
	res := z.union(high, z.low(n))
	z.popref(2)
	return res
}

// dropConflicts removes every set holding both a variable and its complement.
// The two literals of a variable sit on consecutive levels, so a conflicting
// complement can only show up at the root of a then branch.
func (c *cutsets) dropConflicts(n int) int {
	z := c.z
	if n <= 1 {
		return n
	}
	if res := z.opc.match1(n, opConflict); res >= 0 {
		return res
	}
	lv := z.level(n)
	high := z.pushref(c.dropConflicts(z.high(n)))
	if lv >= c.varBase && (lv-c.varBase)%2 == 0 && high > 1 && z.level(high) == lv+1 {
		high = z.low(high)
	}
	low := z.pushref(c.dropConflicts(z.low(n)))
	res := z.mknode(lv, high, low)
	z.popref(2)
	return z.opc.set1(n, opConflict, res)
}

// gatherModules returns the module placeholder levels present in the family
// rooted at n, in increasing order.
func (c *cutsets) gatherModules(n int) []int32 {
	seen := make(map[int]bool)
	found := make(map[int32]bool)
	var rec func(n int)
	rec = func(n int) {
		if n <= 1 || seen[n] {
			return
		}
		seen[n] = true
		if _, ok := c.lvMod[c.z.level(n)]; ok {
			found[c.z.level(n)] = true
		}
		rec(c.z.high(n))
		rec(c.z.low(n))
	}
	rec(n)
	res := make([]int32, 0, len(found))
	for lv := range found {
		res = append(res, lv)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// joinModule replaces a module placeholder with the family of cut sets of the
// module. A family reduced to a terminal eliminates the placeholder outright:
// the sets holding a false module are dropped, a true module simply vanishes
// from its sets.
func (c *cutsets) joinModule(n int, lv int32, family int) int {
	return c.z.substitute(n, lv, family, c.limit)
}

// replace retains the new root of the container and drops the old one.
func (c *cutsets) replace(old, fresh int) int {
	c.z.retain(fresh)
	c.z.release(old)
	return fresh
}
