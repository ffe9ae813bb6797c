// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

// Operation identifiers for the binary operation cache.
const (
	opUnion = iota + 1
	opIntersect
	opDifference
	opSubsume
	opPrune
	opMinimize
	opConflict
)

// unlimited is the order budget used when no limit is set on the size of the
// generated sets.
const unlimited = 1 << 30

// zbdd is a Zero-suppressed Binary Decision Diagram over an arena of
// vertices. Terminals are 0 (the empty family) and 1 (the family holding only
// the empty set). Internal vertices satisfy the zero-suppression invariant:
// the then branch is never the 0 terminal, and levels strictly increase along
// any path. The family encoded by a vertex (v, high, low) is
// {{v} U s : s in family(high)} U family(low).
type zbdd struct {
	*pool
	opc   cache // union, intersection, difference, subsume and prune results
	minc  cache // minimize results
	prodc cache // product results, keyed with the remaining order budget
	compc cache // substitution results
}

func newZbdd(nodesize int, cachesize int) *zbdd {
	z := &zbdd{pool: makepool(nodesize, _MAXLEVEL)}
	if cachesize <= 0 {
		cachesize = len(z.nodes)/5 + 1
	}
	z.opc.cacheinit(cachesize)
	z.minc.cacheinit(cachesize)
	z.prodc.cacheinit(cachesize)
	z.compc.cacheinit(cachesize)
	return z
}

func (z *zbdd) cachereset() {
	z.opc.cachereset()
	z.minc.cachereset()
	z.prodc.cachereset()
	z.compc.cachereset()
}

func (z *zbdd) cacheresize() {
	z.opc.cacheresize(len(z.nodes))
	z.minc.cacheresize(len(z.nodes))
	z.prodc.cacheresize(len(z.nodes))
	z.compc.cacheresize(len(z.nodes))
}

// mknode interns a vertex after applying the zero-suppression rule: a vertex
// whose then branch is the 0 terminal stands for its else branch.
func (z *zbdd) mknode(level int32, high, low int) int {
	if high == 0 {
		return low
	}
	res, err := z.pool.makenode(level, low, high)
	if err != nil {
		switch err {
		case errReset:
			z.cachereset()
		case errResize:
			z.cacheresize()
		default:
			panic(limitf("out of memory growing the set arena (%d vertices)", len(z.nodes)))
		}
	}
	return res
}

// single returns the family holding the single set {level}.
func (z *zbdd) single(level int32) int {
	return z.mknode(level, 1, 0)
}

// emptyIn reports whether the empty set belongs to the family of n.
func (z *zbdd) emptyIn(n int) bool {
	for n > 1 {
		n = z.low(n)
	}
	return n == 1
}

// union computes family(a) U family(b).
func (z *zbdd) union(a, b int) int {
	if a == 0 || a == b {
		return b
	}
	if b == 0 {
		return a
	}
	if a > b {
		a, b = b, a
	}
	if res := z.opc.match2(a, b, opUnion); res >= 0 {
		return res
	}
	la, lb := z.level(a), z.level(b)
	var res int
	switch {
	case la < lb:
		low := z.pushref(z.union(z.low(a), b))
		res = z.mknode(la, z.high(a), low)
		z.popref(1)
	case la > lb:
		low := z.pushref(z.union(a, z.low(b)))
		res = z.mknode(lb, z.high(b), low)
		z.popref(1)
	default:
		high := z.pushref(z.union(z.high(a), z.high(b)))
		low := z.pushref(z.union(z.low(a), z.low(b)))
		res = z.mknode(la, high, low)
		z.popref(2)
	}
	return z.opc.set2(a, b, opUnion, res)
}

// intersect computes family(a) ∩ family(b).
func (z *zbdd) intersect(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a == b {
		return a
	}
	if a > b {
		a, b = b, a
	}
	if res := z.opc.match2(a, b, opIntersect); res >= 0 {
		return res
	}
	la, lb := z.level(a), z.level(b)
	var res int
	switch {
	case la < lb:
		res = z.intersect(z.low(a), b)
	case la > lb:
		res = z.intersect(a, z.low(b))
	default:
		high := z.pushref(z.intersect(z.high(a), z.high(b)))
		low := z.pushref(z.intersect(z.low(a), z.low(b)))
		res = z.mknode(la, high, low)
		z.popref(2)
	}
	return z.opc.set2(a, b, opIntersect, res)
}

// difference computes family(a) \ family(b).
func (z *zbdd) difference(a, b int) int {
	if a == 0 || a == b {
		return 0
	}
	if b == 0 {
		return a
	}
	if res := z.opc.match2(a, b, opDifference); res >= 0 {
		return res
	}
	la, lb := z.level(a), z.level(b)
	var res int
	switch {
	case la < lb:
		low := z.pushref(z.difference(z.low(a), b))
		res = z.mknode(la, z.high(a), low)
		z.popref(1)
	case la > lb:
		res = z.difference(a, z.low(b))
	default:
		high := z.pushref(z.difference(z.high(a), z.high(b)))
		low := z.pushref(z.difference(z.low(a), z.low(b)))
		res = z.mknode(la, high, low)
		z.popref(2)
	}
	return z.opc.set2(a, b, opDifference, res)
}

// subsume removes from a every set that is a superset of some set in b.
func (z *zbdd) subsume(a, b int) int {
	if a == 0 || b == 0 {
		return a
	}
	if b == 1 || a == b {
		// the empty set subsumes everything
		return 0
	}
	if res := z.opc.match2(a, b, opSubsume); res >= 0 {
		return res
	}
	la, lb := z.level(a), z.level(b)
	var res int
	switch {
	case la > lb:
		// sets of b holding the smaller variable cannot be included in any
		// set of a
		res = z.subsume(a, z.low(b))
	case la < lb:
		high := z.pushref(z.subsume(z.high(a), b))
		low := z.pushref(z.subsume(z.low(a), b))
		res = z.mknode(la, high, low)
		z.popref(2)
	default:
		high := z.pushref(z.subsume(z.high(a), z.high(b)))
		high = z.pushref(z.subsume(high, z.low(b)))
		low := z.pushref(z.subsume(z.low(a), z.low(b)))
		res = z.mknode(la, high, low)
		z.popref(3)
	}
	return z.opc.set2(a, b, opSubsume, res)
}

// minimize removes the non-minimal sets of a family, so that no remaining set
// is a superset of another.
func (z *zbdd) minimize(a int) int {
	if a <= 1 {
		return a
	}
	if res := z.minc.match1(a, opMinimize); res >= 0 {
		return res
	}
	high := z.pushref(z.minimize(z.high(a)))
	low := z.pushref(z.minimize(z.low(a)))
	high = z.pushref(z.subsume(high, low))
	res := z.mknode(z.level(a), high, low)
	z.popref(3)
	return z.minc.set1(a, opMinimize, res)
}

// product computes the pairwise unions of the sets of the two families,
// dropping any result with more than n literals.
func (z *zbdd) product(a, b, n int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a == 1 {
		return z.prune(b, n)
	}
	if b == 1 {
		return z.prune(a, n)
	}
	if a > b {
		a, b = b, a
	}
	if res := z.prodc.match2(a, b, n); res >= 0 {
		return res
	}
	la, lb := z.level(a), z.level(b)
	var res int
	switch {
	case la < lb:
		high := 0
		if n > 0 {
			high = z.pushref(z.product(z.high(a), b, n-1))
		} else {
			z.pushref(0)
		}
		low := z.pushref(z.product(z.low(a), b, n))
		res = z.mknode(la, high, low)
		z.popref(2)
	case la > lb:
		high := 0
		if n > 0 {
			high = z.pushref(z.product(z.high(b), a, n-1))
		} else {
			z.pushref(0)
		}
		low := z.pushref(z.product(z.low(b), a, n))
		res = z.mknode(lb, high, low)
		z.popref(2)
	default:
		high := 0
		if n > 0 {
			h1 := z.pushref(z.product(z.high(a), z.high(b), n-1))
			h2 := z.pushref(z.product(z.high(a), z.low(b), n-1))
			h3 := z.pushref(z.product(z.low(a), z.high(b), n-1))
			h4 := z.pushref(z.union(h1, h2))
			high = z.pushref(z.union(h4, h3))
			z.popref(5)
		}
		z.pushref(high)
		low := z.pushref(z.product(z.low(a), z.low(b), n))
		res = z.mknode(la, high, low)
		z.popref(2)
	}
	return z.prodc.set2(a, b, n, res)
}

// prune removes the sets with more than n literals.
func (z *zbdd) prune(a, n int) int {
	if a <= 1 {
		return a
	}
	if n <= 0 {
		if z.emptyIn(a) {
			return 1
		}
		return 0
	}
	if n >= unlimited {
		return a
	}
	if res := z.opc.match2(a, n, opPrune); res >= 0 {
		return res
	}
	high := z.pushref(z.prune(z.high(a), n-1))
	low := z.pushref(z.prune(z.low(a), n))
	res := z.mknode(z.level(a), high, low)
	z.popref(2)
	return z.opc.set2(a, n, opPrune, res)
}

// substitute replaces the literal at the given level with a whole family:
// every set holding the literal is crossed with repl. The level must not
// appear in repl.
func (z *zbdd) substitute(a int, level int32, repl, n int) int {
	if a <= 1 || z.level(a) > level {
		return a
	}
	if res := z.compc.match2(a, repl, int(level)); res >= 0 {
		return res
	}
	var res int
	if z.level(a) == level {
		rest := z.pushref(z.substitute(z.low(a), level, repl, n))
		crossed := z.pushref(z.product(repl, z.high(a), n))
		res = z.union(crossed, rest)
		z.popref(2)
	} else {
		high := z.pushref(z.substitute(z.high(a), level, repl, n))
		low := z.pushref(z.substitute(z.low(a), level, repl, n))
		res = z.mknode(z.level(a), high, low)
		z.popref(2)
	}
	return z.compc.set2(a, repl, int(level), res)
}

// eachSet calls f on every set of the family rooted at n. Sets are passed as
// slices of levels in increasing order; the slice is reused between calls.
func (z *zbdd) eachSet(n int, f func([]int32) error) error {
	var rec func(n int, prefix []int32) error
	rec = func(n int, prefix []int32) error {
		if n == 0 {
			return nil
		}
		if n == 1 {
			return f(prefix)
		}
		if err := rec(z.high(n), append(prefix, z.level(n))); err != nil {
			return err
		}
		return rec(z.low(n), prefix)
	}
	return rec(n, make([]int32, 0, 16))
}

// count returns the number of sets in the family rooted at n.
func (z *zbdd) count(n int) int {
	memo := make(map[int]int)
	var rec func(n int) int
	rec = func(n int) int {
		if n <= 1 {
			return n
		}
		if c, ok := memo[n]; ok {
			return c
		}
		c := rec(z.high(n)) + rec(z.low(n))
		memo[n] = c
		return c
	}
	return rec(n)
}
