// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

// Operation identifiers for the binary decision diagram caches.
const (
	opConj = iota + 1
	opDisj
	opRestrictF
	opRestrictT
)

// bdd is a Binary Decision Diagram over an arena of vertices, used for exact
// probability computations. Terminals are 0 (false) and 1 (true). Internal
// vertices satisfy the Shannon reduction invariant: the two branches are
// always distinct and levels strictly increase along any path. Levels map to
// variable indices, level k standing for variable k+1.
type bdd struct {
	*pool
	appc  cache     // conjunction and disjunction results
	resc  cache     // restriction results
	pmemo []float64 // node probability, valid when pmark matches pgen
	pmark []uint32
	pgen  uint32
}

func newBdd(nodesize int, cachesize int) *bdd {
	b := &bdd{pool: makepool(nodesize, _MAXLEVEL)}
	if cachesize <= 0 {
		cachesize = len(b.nodes)/5 + 1
	}
	b.appc.cacheinit(cachesize)
	b.resc.cacheinit(cachesize)
	return b
}

func (b *bdd) cachereset() {
	b.appc.cachereset()
	b.resc.cachereset()
}

func (b *bdd) cacheresize() {
	b.appc.cacheresize(len(b.nodes))
	b.resc.cacheresize(len(b.nodes))
}

// mknode interns a vertex after applying the Shannon reduction rule: a vertex
// with equal branches stands for either of them.
func (b *bdd) mknode(level int32, high, low int) int {
	if high == low {
		return low
	}
	res, err := b.pool.makenode(level, low, high)
	if err != nil {
		switch err {
		case errReset:
			b.cachereset()
		case errResize:
			b.cacheresize()
		default:
			panic(limitf("out of memory growing the diagram arena (%d vertices)", len(b.nodes)))
		}
	}
	return res
}

// literal returns the vertex testing a signed variable index.
func (b *bdd) literal(lit int) int {
	level := int32(abs(lit) - 1)
	if lit < 0 {
		return b.mknode(level, 0, 1)
	}
	return b.mknode(level, 1, 0)
}

// and computes the conjunction of x and y.
func (b *bdd) and(x, y int) int {
	if x == 0 || y == 0 {
		return 0
	}
	if x == 1 || x == y {
		return y
	}
	if y == 1 {
		return x
	}
	if x > y {
		x, y = y, x
	}
	if res := b.appc.match2(x, y, opConj); res >= 0 {
		return res
	}
	lx, ly := b.level(x), b.level(y)
	var res int
	switch {
	case lx < ly:
		high := b.pushref(b.and(b.high(x), y))
		low := b.pushref(b.and(b.low(x), y))
		res = b.mknode(lx, high, low)
		b.popref(2)
	case lx > ly:
		high := b.pushref(b.and(x, b.high(y)))
		low := b.pushref(b.and(x, b.low(y)))
		res = b.mknode(ly, high, low)
		b.popref(2)
	default:
		high := b.pushref(b.and(b.high(x), b.high(y)))
		low := b.pushref(b.and(b.low(x), b.low(y)))
		res = b.mknode(lx, high, low)
		b.popref(2)
	}
	return b.appc.set2(x, y, opConj, res)
}

// or computes the disjunction of x and y.
func (b *bdd) or(x, y int) int {
	if x == 1 || y == 1 {
		return 1
	}
	if x == 0 || x == y {
		return y
	}
	if y == 0 {
		return x
	}
	if x > y {
		x, y = y, x
	}
	if res := b.appc.match2(x, y, opDisj); res >= 0 {
		return res
	}
	lx, ly := b.level(x), b.level(y)
	var res int
	switch {
	case lx < ly:
		high := b.pushref(b.or(b.high(x), y))
		low := b.pushref(b.or(b.low(x), y))
		res = b.mknode(lx, high, low)
		b.popref(2)
	case lx > ly:
		high := b.pushref(b.or(x, b.high(y)))
		low := b.pushref(b.or(x, b.low(y)))
		res = b.mknode(ly, high, low)
		b.popref(2)
	default:
		high := b.pushref(b.or(b.high(x), b.high(y)))
		low := b.pushref(b.or(b.low(x), b.low(y)))
		res = b.mknode(lx, high, low)
		b.popref(2)
	}
	return b.appc.set2(x, y, opDisj, res)
}

// restrict fixes the variable at the given level to a constant value.
func (b *bdd) restrict(n int, level int32, val bool) int {
	if n <= 1 || b.level(n) > level {
		return n
	}
	if b.level(n) == level {
		if val {
			return b.high(n)
		}
		return b.low(n)
	}
	op := opRestrictF
	if val {
		op = opRestrictT
	}
	if res := b.resc.match2(n, int(level), op); res >= 0 {
		return res
	}
	high := b.pushref(b.restrict(b.high(n), level, val))
	low := b.pushref(b.restrict(b.low(n), level, val))
	res := b.mknode(b.level(n), high, low)
	b.popref(2)
	return b.resc.set2(n, int(level), op, res)
}

// flip invalidates the node probability memo without clearing it.
func (b *bdd) flip() {
	b.pgen++
}

// prob returns the probability that the function rooted at n holds, with pr
// giving the probability of each variable by level. Node results are memoized
// until the next flip.
func (b *bdd) prob(n int, pr []float64) float64 {
	if len(b.pmemo) < len(b.nodes) {
		b.pmemo = make([]float64, len(b.nodes))
		b.pmark = make([]uint32, len(b.nodes))
		if b.pgen == 0 {
			b.pgen = 1
		}
	}
	var rec func(n int) float64
	rec = func(n int) float64 {
		if n == 0 {
			return 0
		}
		if n == 1 {
			return 1
		}
		if b.pmark[n] == b.pgen {
			return b.pmemo[n]
		}
		p := pr[b.level(n)]
		res := p*rec(b.high(n)) + (1-p)*rec(b.low(n))
		b.pmemo[n] = res
		b.pmark[n] = b.pgen
		return res
	}
	return rec(n)
}

// buildBdd converts a preprocessed graph to a diagram, returning the arena
// and the retained root vertex. A module gate converts like any other gate.
func buildBdd(g *Graph) (*bdd, int) {
	b := newBdd(defaultSetNodes, 0)
	root := g.Root()
	if root == nil || root.IsConstant() {
		if root != nil && root.ConstantValue() {
			return b, 1
		}
		return b, 0
	}
	memo := make(map[int]int)
	var conv func(gate *Gate) int
	conv = func(gate *Gate) int {
		if res, ok := memo[gate.Index()]; ok {
			return res
		}
		acc := 0
		if gate.Op() == OpAnd {
			acc = 1
		}
		for _, a := range gate.Args() {
			var arg int
			if sub, ok := gate.GateArgs()[abs(a)]; ok {
				if a < 0 {
					panic(logicf("complemented gate argument %d in gate G%d", a, gate.Index()))
				}
				arg = conv(sub)
			} else if _, ok := gate.VarArgs()[abs(a)]; ok {
				arg = b.retain(b.literal(a))
			} else {
				panic(logicf("constant argument %d left in gate G%d", a, gate.Index()))
			}
			old := acc
			if gate.Op() == OpAnd {
				acc = b.retain(b.and(old, arg))
			} else {
				acc = b.retain(b.or(old, arg))
			}
			b.release(old)
			if _, ok := gate.GateArgs()[abs(a)]; !ok {
				b.release(arg)
			}
		}
		memo[gate.Index()] = acc
		return acc
	}
	n := conv(root)
	for idx, m := range memo {
		if idx != root.Index() {
			b.release(m)
		}
	}
	return b, n
}
