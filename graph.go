// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import "sort"

// GateOp is the logical connective of a gate in a Graph.
type GateOp int

const (
	// OpAnd is the conjunction of all the arguments.
	OpAnd GateOp = iota
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
	// OpNull is a pass-through gate with a single argument.
	OpNull
)

func (op GateOp) String() string {
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

// gateState tracks whether a gate collapsed to a constant during construction
// or rewriting. A gate that is not stateNormal has no arguments.
type gateState int

const (
	stateNormal gateState = iota
	stateNull             // the gate is constant false
	stateUnity            // the gate is constant true
)

// nodebase carries the fields shared by every vertex of a Graph: the unique
// index, the parent back-references, the traversal clocks and a scratch slot
// for rewriting passes.
//
// The parent map is a lookup relation only. An entry g.index -> g exists
// exactly when this vertex appears among the arguments of g.
type nodebase struct {
	index  int
	parent map[int]*Gate
	visit  [3]int
	opti   int
}

func mkbase(index int) nodebase {
	return nodebase{index: index, parent: make(map[int]*Gate)}
}

// Index returns the unique (positive) index of the vertex in its graph.
func (nb *nodebase) Index() int { return nb.index }

// Parents returns the gates that have this vertex among their arguments,
// keyed by gate index.
func (nb *nodebase) Parents() map[int]*Gate { return nb.parent }

// Visit records a traversal time on the vertex. The first call sets the enter
// time, the second the exit time. Any further call sets the last-visit time
// and reports true.
func (nb *nodebase) Visit(t int) bool {
	if nb.visit[0] == 0 {
		nb.visit[0] = t
		return false
	}
	if nb.visit[1] == 0 {
		nb.visit[1] = t
		return false
	}
	nb.visit[2] = t
	return true
}

// Visited reports whether the vertex has an enter time.
func (nb *nodebase) Visited() bool { return nb.visit[0] != 0 }

// EnterTime returns the time of the first visit.
func (nb *nodebase) EnterTime() int { return nb.visit[0] }

// ExitTime returns the time of the second visit.
func (nb *nodebase) ExitTime() int { return nb.visit[1] }

// LastVisit returns the most recent visit time.
func (nb *nodebase) LastVisit() int {
	if nb.visit[2] != 0 {
		return nb.visit[2]
	}
	if nb.visit[1] != 0 {
		return nb.visit[1]
	}
	return nb.visit[0]
}

// ClearVisits resets the three traversal clocks.
func (nb *nodebase) ClearVisits() { nb.visit = [3]int{} }

func (nb *nodebase) base() *nodebase { return nb }

// node is the common interface of Graph vertices: *Variable, *Constant and
// *Gate.
type node interface {
	Index() int
	Parents() map[int]*Gate
	base() *nodebase
}

// Variable is a proxy for a basic event. Variables have indices densely
// packed in [1..n] so that index-1 maps back to the basic event.
type Variable struct {
	nodebase
}

// Constant is a Boolean leaf. Its index lives above the variable range.
type Constant struct {
	nodebase
	value bool
}

// Value returns the Boolean value of the constant.
func (c *Constant) Value() bool { return c.value }

// Gate is an inner vertex of a Graph. Arguments are signed indices; a
// negative value denotes the complement of the argument. Arguments are also
// segregated by kind in three maps keyed by the unsigned index.
type Gate struct {
	nodebase
	g      *Graph
	op     GateOp
	state  gateState
	k      int // minimum number for OpAtleast
	mark   bool
	module bool
	mint   int // minimum visit time of the whole subtree
	maxt   int // maximum visit time of the whole subtree
	args   map[int]struct{}
	gates  map[int]*Gate
	vars   map[int]*Variable
	consts map[int]*Constant
}

// Op returns the logical connective of the gate.
func (g *Gate) Op() GateOp { return g.op }

// K returns the minimum number of an OpAtleast gate.
func (g *Gate) K() int { return g.k }

// IsModule reports whether the gate was detected as an independent module.
func (g *Gate) IsModule() bool { return g.module }

// IsConstant reports whether the gate collapsed to a constant.
func (g *Gate) IsConstant() bool { return g.state != stateNormal }

// ConstantValue returns the value of a collapsed gate. It must only be called
// when IsConstant is true.
func (g *Gate) ConstantValue() bool { return g.state == stateUnity }

// Args returns the signed argument indices of the gate, in increasing order.
func (g *Gate) Args() []int {
	res := make([]int, 0, len(g.args))
	for a := range g.args {
		res = append(res, a)
	}
	sort.Ints(res)
	return res
}

// NumArgs returns the number of arguments of the gate.
func (g *Gate) NumArgs() int { return len(g.args) }

// GateArgs returns the gate arguments keyed by unsigned index.
func (g *Gate) GateArgs() map[int]*Gate { return g.gates }

// VarArgs returns the variable arguments keyed by unsigned index.
func (g *Gate) VarArgs() map[int]*Variable { return g.vars }

// ConstArgs returns the constant arguments keyed by unsigned index.
func (g *Gate) ConstArgs() map[int]*Constant { return g.consts }

// argNode returns the vertex with the given unsigned index among the
// arguments of the gate.
func (g *Gate) argNode(idx int) node {
	if n, ok := g.gates[idx]; ok {
		return n
	}
	if n, ok := g.vars[idx]; ok {
		return n
	}
	if n, ok := g.consts[idx]; ok {
		return n
	}
	return nil
}

// HasArg reports whether the signed index is an argument of the gate.
func (g *Gate) HasArg(idx int) bool {
	_, ok := g.args[idx]
	return ok
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func sign(i int) int {
	if i < 0 {
		return -1
	}
	return 1
}


// AddArg inserts a signed argument into the gate. The unsigned value of idx
// must be the index of n. Duplicate and complement insertions are resolved
// according to the gate connective; the result reports whether the gate
// collapsed to a constant because of the insertion.
//
// Inserting a neutral constant (true in a conjunction, false in a
// disjunction) is a no-op; an absorbing constant collapses the gate. Other
// constants are stored and left to constant propagation.
func (g *Gate) AddArg(idx int, n node) bool {
	if g.state != stateNormal {
		return false
	}
	if _, ok := g.args[idx]; ok {
		return g.processDuplicate(idx)
	}
	if _, ok := g.args[-idx]; ok {
		return g.processComplement(idx)
	}
	if c, ok := n.(*Constant); ok {
		ev := c.value != (idx < 0)
		switch g.op {
		case OpAnd:
			if !ev {
				g.Nullify()
				return true
			}
			return false
		case OpNand:
			if !ev {
				g.MakeUnity()
				return true
			}
			return false
		case OpOr:
			if ev {
				g.MakeUnity()
				return true
			}
			return false
		case OpNor:
			if ev {
				g.Nullify()
				return true
			}
			return false
		}
	}
	g.args[idx] = struct{}{}
	switch t := n.(type) {
	case *Gate:
		g.gates[t.index] = t
	case *Variable:
		g.vars[t.index] = t
	case *Constant:
		g.consts[t.index] = t
	}
	n.Parents()[g.index] = g
	return false
}

// processDuplicate resolves the insertion of an argument already present with
// the same sign.
func (g *Gate) processDuplicate(idx int) bool {
	switch g.op {
	case OpAnd, OpOr, OpNand, OpNor:
		// idempotent
		return false
	case OpXor:
		// x xor x is false
		g.Nullify()
		return true
	case OpAtleast:
		return g.duplicateVoteArg(idx)
	}
	panic(logicf("duplicate argument %d in %s gate G%d", idx, g.op, g.index))
}

// duplicateVoteArg rewrites an ATLEAST gate receiving a duplicate of x into
// OR(AND(x, ATLEAST(k-2, rest)), ATLEAST(k, rest)) where rest excludes x.
func (g *Gate) duplicateVoteArg(idx int) bool {
	n := g.argNode(abs(idx))
	k := g.k
	rest := make([]int, 0, len(g.args)-1)
	restNodes := make([]node, 0, len(g.args)-1)
	for a := range g.args {
		if a == idx {
			continue
		}
		rest = append(rest, a)
		restNodes = append(restNodes, g.argNode(abs(a)))
	}
	g.EraseAllArgs()
	g.op = OpOr
	g.k = 0
	// first branch: AND(x, ATLEAST(k-2, rest)); the vote part vanishes when
	// k-2 <= 0
	if k-2 <= 0 {
		g.AddArg(idx, n)
	} else if k-2 <= len(rest) {
		branch := g.g.NewGate(OpAnd)
		branch.AddArg(idx, n)
		sub := g.g.newVote(k-2, rest, restNodes)
		if sub != nil {
			branch.AddArg(sub.index, sub)
		}
		if !branch.IsConstant() {
			g.AddArg(branch.index, branch)
		} else if branch.ConstantValue() {
			g.MakeUnity()
			return true
		}
	}
	// second branch: ATLEAST(k, rest); constant false when k > |rest|
	if k <= len(rest) {
		sub := g.g.newVote(k, rest, restNodes)
		if sub != nil {
			if g.AddArg(sub.index, sub) {
				return true
			}
		} else {
			// the vote collapsed to true
			g.MakeUnity()
			return true
		}
	}
	if len(g.args) == 0 {
		g.Nullify()
		return true
	}
	return false
}

// processComplement resolves the insertion of an argument whose complement is
// already present.
func (g *Gate) processComplement(idx int) bool {
	switch g.op {
	case OpAnd:
		g.Nullify()
		return true
	case OpNand:
		g.MakeUnity()
		return true
	case OpOr:
		g.MakeUnity()
		return true
	case OpNor:
		g.Nullify()
		return true
	case OpXor:
		// x xor not x is true
		g.MakeUnity()
		return true
	case OpAtleast:
		// exactly one of the pair holds, so the pair contributes one to the
		// count: ATLEAST(k, {x, not x} U rest) = ATLEAST(k-1, rest)
		g.EraseArg(-idx)
		g.k--
		return g.reduceVote()
	}
	panic(logicf("complement argument %d in %s gate G%d", idx, g.op, g.index))
}

// reduceVote restores the ATLEAST invariant 1 <= k <= len(args) after k or
// the argument list changed, possibly demoting the gate to another connective
// or to a constant.
func (g *Gate) reduceVote() bool {
	if g.op != OpAtleast {
		return false
	}
	if g.k <= 0 {
		g.MakeUnity()
		return true
	}
	if g.k > len(g.args) {
		g.Nullify()
		return true
	}
	if g.k == 1 {
		g.op = OpOr
		g.k = 0
		return false
	}
	if g.k == len(g.args) {
		g.op = OpAnd
		g.k = 0
	}
	return false
}

// newVote builds a fresh ATLEAST(k, args) gate, demoting it to OR or AND when
// k is 1 or len(args). It returns nil when the vote is trivially true (k <=
// 0); it must not be called with k > len(args).
func (g *Graph) newVote(k int, args []int, nodes []node) *Gate {
	if k <= 0 {
		return nil
	}
	var res *Gate
	switch {
	case k == 1:
		res = g.NewGate(OpOr)
	case k == len(args):
		res = g.NewGate(OpAnd)
	default:
		res = g.NewVoteGate(k)
	}
	for i, a := range args {
		if res.AddArg(a, nodes[i]) {
			break
		}
	}
	return res
}

// EraseArg removes a signed argument from the gate, updating the parent
// back-reference of the argument.
func (g *Gate) EraseArg(idx int) {
	n := g.argNode(abs(idx))
	delete(g.args, idx)
	switch t := n.(type) {
	case *Gate:
		delete(g.gates, t.index)
	case *Variable:
		delete(g.vars, t.index)
	case *Constant:
		delete(g.consts, t.index)
	}
	if n != nil {
		delete(n.Parents(), g.index)
	}
}

// EraseAllArgs removes every argument of the gate.
func (g *Gate) EraseAllArgs() {
	for _, n := range g.gates {
		delete(n.Parents(), g.index)
	}
	for _, n := range g.vars {
		delete(n.Parents(), g.index)
	}
	for _, n := range g.consts {
		delete(n.Parents(), g.index)
	}
	g.args = make(map[int]struct{})
	g.gates = make(map[int]*Gate)
	g.vars = make(map[int]*Variable)
	g.consts = make(map[int]*Constant)
}

// Nullify collapses the gate to constant false and drops its arguments.
func (g *Gate) Nullify() {
	g.state = stateNull
	g.EraseAllArgs()
}

// MakeUnity collapses the gate to constant true and drops its arguments.
func (g *Gate) MakeUnity() {
	g.state = stateUnity
	g.EraseAllArgs()
}

// InvertArgs negates the sign of every argument of the gate.
func (g *Gate) InvertArgs() {
	inv := make(map[int]struct{}, len(g.args))
	for a := range g.args {
		inv[-a] = struct{}{}
	}
	g.args = inv
}

// InvertArg negates the sign of an existing argument. The complement must not
// already be present.
func (g *Gate) InvertArg(idx int) {
	if _, ok := g.args[idx]; !ok {
		panic(logicf("inverting absent argument %d of gate G%d", idx, g.index))
	}
	delete(g.args, idx)
	g.args[-idx] = struct{}{}
}

// JoinGate absorbs the arguments of a same-connective child gate into g and
// removes the child. The caller guarantees that the child appears positively
// and that the connectives are compatible. The result reports whether the
// absorption collapsed g to a constant.
func (g *Gate) JoinGate(child *Gate) bool {
	for _, a := range child.Args() {
		if g.AddArg(a, child.argNode(abs(a))) {
			return true
		}
	}
	g.EraseArg(child.index)
	return false
}

// JoinNullGate splices a single-argument pass-through child into g,
// preserving the sign of the reference. The result reports whether g
// collapsed to a constant.
func (g *Gate) JoinNullGate(idx int) bool {
	child := g.gates[abs(idx)]
	args := child.Args()
	if len(args) != 1 {
		panic(logicf("splicing gate G%d with %d arguments", child.index, len(args)))
	}
	a := args[0]
	n := child.argNode(abs(a))
	g.EraseArg(idx)
	return g.AddArg(sign(idx)*a, n)
}

// TransferArg moves a signed argument from g to the recipient gate.
func (g *Gate) TransferArg(idx int, recipient *Gate) bool {
	n := g.argNode(abs(idx))
	g.EraseArg(idx)
	return recipient.AddArg(idx, n)
}

// ShareArg adds a signed argument of g to the recipient gate as well.
func (g *Gate) ShareArg(idx int, recipient *Gate) bool {
	return recipient.AddArg(idx, g.argNode(abs(idx)))
}

// Graph is an indexed propositional DAG: the canonical intermediate form
// between a model and the analysis algorithms. Variables take the dense index
// range [1..n]; gates and constants are indexed above.
type Graph struct {
	root      *Gate
	vars      []*Variable
	next      int
	cstTrue   *Constant
	cstFalse  *Constant
	coherent  bool
	normal    bool
	constants bool
}

// NewGraph creates a graph over n variables, with indices 1 to n.
func NewGraph(n int) *Graph {
	g := &Graph{next: n + 1}
	g.vars = make([]*Variable, n)
	for i := range g.vars {
		g.vars[i] = &Variable{nodebase: mkbase(i + 1)}
	}
	return g
}

// NumVars returns the number of variables of the graph.
func (g *Graph) NumVars() int { return len(g.vars) }

// Variable returns the variable with the given index in [1..n].
func (g *Graph) Variable(i int) *Variable { return g.vars[i-1] }

// Root returns the top gate of the graph.
func (g *Graph) Root() *Gate { return g.root }

// SetRoot installs the top gate of the graph.
func (g *Graph) SetRoot(root *Gate) { g.root = root }

// Coherent reports whether no variable appears complemented after
// preprocessing.
func (g *Graph) Coherent() bool { return g.coherent }

// Normal reports whether only AND and OR gates remain after preprocessing.
func (g *Graph) Normal() bool { return g.normal }

// NewGate reserves a fresh index and returns a gate with the given
// connective.
func (g *Graph) NewGate(op GateOp) *Gate {
	gate := &Gate{
		nodebase: mkbase(g.next),
		g:        g,
		op:       op,
		args:     make(map[int]struct{}),
		gates:    make(map[int]*Gate),
		vars:     make(map[int]*Variable),
		consts:   make(map[int]*Constant),
	}
	g.next++
	return gate
}

// NewVoteGate returns a fresh ATLEAST gate with minimum number k.
func (g *Graph) NewVoteGate(k int) *Gate {
	gate := g.NewGate(OpAtleast)
	gate.k = k
	return gate
}

// TrueConstant returns the constant true leaf of the graph.
func (g *Graph) TrueConstant() *Constant {
	if g.cstTrue == nil {
		g.cstTrue = &Constant{nodebase: mkbase(g.next), value: true}
		g.next++
	}
	return g.cstTrue
}

// FalseConstant returns the constant false leaf of the graph.
func (g *Graph) FalseConstant() *Constant {
	if g.cstFalse == nil {
		g.cstFalse = &Constant{nodebase: mkbase(g.next), value: false}
		g.next++
	}
	return g.cstFalse
}

// clearVisits resets the traversal clocks of every vertex reachable from the
// root.
func (g *Graph) clearVisits() {
	seen := make(map[int]bool)
	var rec func(gate *Gate)
	rec = func(gate *Gate) {
		if seen[gate.index] {
			return
		}
		seen[gate.index] = true
		gate.ClearVisits()
		gate.mint, gate.maxt = 0, 0
		for _, v := range gate.vars {
			v.ClearVisits()
		}
		for _, c := range gate.consts {
			c.ClearVisits()
		}
		for _, sub := range gate.gates {
			rec(sub)
		}
	}
	if g.root != nil {
		rec(g.root)
	}
}

// clearMarks resets the traversal mark of every gate reachable from the
// root. A gate without the mark has an unmarked subtree, since passes mark
// gates on first entry.
func clearGateMark(gate *Gate) {
	if !gate.mark {
		return
	}
	gate.mark = false
	for _, sub := range gate.gates {
		clearGateMark(sub)
	}
}

func (g *Graph) clearMarks() {
	if g.root != nil {
		clearGateMark(g.root)
	}
}
