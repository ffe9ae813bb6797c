// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"errors"

	"k8s.io/klog/v2"
)

// number of bytes used to pack a triplet (level, low, high) in the unique
// table key (adapted from uintSize in the math/bits package)
const vsize = (2*(32<<(^uint(0)>>32&1)) + 32) / 8 // 12 (32 bits) or 20 (64 bits)

// _MINFREENODES is the minimal number of vertices (%) that has to be left
// after a garbage collect unless a resize should be done.
const _MINFREENODES int = 20

// _MAXLEVEL is the maximal number of levels in a diagram. We use only the
// first 21 bits for encoding levels and 11 other bits for markings. Hence we
// make sure to always use int32 to avoid problem when we change architecture.
const _MAXLEVEL int32 = 0x1FFFFF

// _MAXREFCOUNT is the maximal value of the reference counter (refcou), also
// used to stick vertices (like terminals) in the vertex list. It is egal to
// 1023 (10 bits).
const _MAXREFCOUNT int32 = 0x3FF

// _DEFAULTMAXNODEINC is the default value for the maximal increase in the
// number of vertices during a resize. It is approx. one million vertices.
const _DEFAULTMAXNODEINC int = 1 << 20

var errMemory = errors.New("unable to free memory or resize diagram")
var errResize = errors.New("should cache resize") // when gbc and then resize
var errReset = errors.New("should cache reset")   // when gbc only, without resizing

// vertex is a cell of a decision-diagram arena. Terminals are always kept at
// index 0 and 1. When a slot is unused, low is set to -1 and high to the next
// free position; freepos gives the index of the lowest unused slot, except
// when freenum is 0, in which case it is also 0.
type vertex struct {
	level  int32 // Order of the variable in the diagram
	low    int   // Reference to the else branch
	high   int   // Reference to the then branch
	refcou int32 // Count the number of external references
}

type gcpoint struct {
	nodes     int // Total number of vertices in the arena
	freenodes int // Number of free slots left after collection
}

// pool implements a decision-diagram arena using the runtime hashmap as a
// unicity table. We hash a triplet (level, low, high) to a fixed-size byte key
// and associate it to an entry in the vertex table. The reduction rule (BDD or
// ZBDD) is applied by the owner of the pool before interning.
type pool struct {
	nodes           []vertex
	unique          map[[vsize]byte]int // Unicity table, maps each triplet to a single vertex
	freenum         int                 // Number of free slots
	freepos         int                 // First free slot
	produced        int                 // Total number of vertices ever produced
	hbuff           [vsize]byte         // Used to compute the hash of vertices
	minfreenodes    int
	maxnodesize     int
	maxnodeincrease int
	refstack        []int // Internal references made during recursive operations
	history         []gcpoint
}

// makepool initializes an arena with the two terminals at slots 0 and 1,
// carrying the given terminal level.
func makepool(nodesize int, termlevel int32) *pool {
	p := &pool{}
	p.minfreenodes = _MINFREENODES
	p.maxnodeincrease = _DEFAULTMAXNODEINC
	if nodesize < 4 {
		nodesize = 4
	}
	p.nodes = make([]vertex, nodesize)
	for k := range p.nodes {
		p.nodes[k] = vertex{level: 0, low: -1, high: k + 1}
	}
	p.nodes[nodesize-1].high = 0
	p.unique = make(map[[vsize]byte]int, nodesize)
	// terminals are not added to the unique table
	p.nodes[0] = vertex{level: termlevel, low: 0, high: 0, refcou: _MAXREFCOUNT}
	p.nodes[1] = vertex{level: termlevel, low: 1, high: 1, refcou: _MAXREFCOUNT}
	p.freepos = 2
	p.freenum = nodesize - 2
	p.refstack = make([]int, 0, 64)
	return p
}

func (p *pool) ismarked(n int) bool {
	return (p.nodes[n].refcou & 0x200000) != 0
}

func (p *pool) marknode(n int) {
	p.nodes[n].refcou |= 0x200000
}

func (p *pool) unmarknode(n int) {
	p.nodes[n].refcou &= 0x1FFFFF
}

func (p *pool) hash(level int32, low, high int) {
	p.hbuff[0] = byte(level)
	p.hbuff[1] = byte(level >> 8)
	p.hbuff[2] = byte(level >> 16)
	p.hbuff[3] = byte(level >> 24)
	p.hbuff[4] = byte(low)
	p.hbuff[5] = byte(low >> 8)
	p.hbuff[6] = byte(low >> 16)
	p.hbuff[7] = byte(low >> 24)
	if vsize == 20 {
		// 64 bits machine
		p.hbuff[8] = byte(low >> 32)
		p.hbuff[9] = byte(low >> 40)
		p.hbuff[10] = byte(low >> 48)
		p.hbuff[11] = byte(low >> 56)
		p.hbuff[12] = byte(high)
		p.hbuff[13] = byte(high >> 8)
		p.hbuff[14] = byte(high >> 16)
		p.hbuff[15] = byte(high >> 24)
		p.hbuff[16] = byte(high >> 32)
		p.hbuff[17] = byte(high >> 40)
		p.hbuff[18] = byte(high >> 48)
		p.hbuff[19] = byte(high >> 56)
		return
	}
	// 32 bits machine
	p.hbuff[8] = byte(high)
	p.hbuff[9] = byte(high >> 8)
	p.hbuff[10] = byte(high >> 16)
	p.hbuff[11] = byte(high >> 24)
}

func (p *pool) lookup(level int32, low, high int) (int, bool) {
	p.hash(level, low, high)
	hn, ok := p.unique[p.hbuff]
	return hn, ok
}

func (p *pool) setnode(level int32, low int, high int, count int32) int {
	p.hash(level, low, high)
	p.freenum--
	p.unique[p.hbuff] = p.freepos
	res := p.freepos
	p.freepos = p.nodes[p.freepos].high
	p.nodes[res] = vertex{level, low, high, count}
	return res
}

func (p *pool) delnode(v vertex) {
	p.hash(v.level, v.low, v.high)
	delete(p.unique, p.hbuff)
}

// makenode interns the triplet (level, low, high), reusing an existing vertex
// when possible. The error is errReset or errResize when a garbage collection
// or a resize took place, in which case the owner must reset or resize its
// operation caches.
func (p *pool) makenode(level int32, low, high int) (int, error) {
	if res, ok := p.lookup(level, low, high); ok {
		return res, nil
	}
	// If no existing vertex, we build one. If there is no available spot
	// (p.freepos == 0), we try garbage collection and, as a last resort,
	// resizing the arena.
	var err error
	if p.freepos == 0 {
		p.gbc()
		err = errReset
		if (p.freenum*100)/len(p.nodes) <= p.minfreenodes {
			if rerr := p.resize(); rerr != errResize {
				return -1, errMemory
			}
			err = errResize
		}
		if p.freepos == 0 {
			return -1, errMemory
		}
	}
	p.produced++
	return p.setnode(level, low, high, 0), err
}

// gbc reclaims the vertices that are not reachable from the reference stack or
// from a vertex with a positive reference count. It is called by makenode when
// no slot is free, so it can run in the middle of a recursive operation; the
// intermediate results pushed on the reference stack survive it.
func (p *pool) gbc() {
	if klog.V(4).Enabled() {
		klog.Infof("diagram GC start, %d vertices", len(p.nodes))
	}
	p.history = append(p.history, gcpoint{nodes: len(p.nodes), freenodes: p.freenum})
	// we mark the vertices in the refstack to avoid collecting them
	for _, r := range p.refstack {
		p.markrec(r)
	}
	// we also protect vertices with a positive refcount, and therefore also
	// the ones with a MAXREFCOUNT, such as terminals
	for k := range p.nodes {
		if p.nodes[k].refcou > 0 {
			p.markrec(k)
		}
	}
	p.freepos = 0
	p.freenum = 0
	// we do a pass through the vertex list to void the unmarked slots. After
	// finishing this pass, p.freepos points to the first free position in
	// p.nodes, or it is 0 if we found none.
	for n := len(p.nodes) - 1; n > 1; n-- {
		if p.ismarked(n) && (p.nodes[n].low != -1) {
			p.unmarknode(n)
		} else {
			p.delnode(p.nodes[n])
			p.nodes[n].low = -1
			p.nodes[n].high = p.freepos
			p.freepos = n
			p.freenum++
		}
	}
	if klog.V(4).Enabled() {
		klog.Infof("diagram GC end, freenum: %d", p.freenum)
	}
}

func (p *pool) resize() error {
	oldsize := len(p.nodes)
	if (oldsize >= p.maxnodesize) && (p.maxnodesize > 0) {
		return errMemory
	}
	nodesize := oldsize
	if oldsize > (int(_MAXLEVEL) >> 1) {
		nodesize = int(_MAXLEVEL)
	} else {
		nodesize = nodesize << 1
	}
	if p.maxnodeincrease > 0 && nodesize > (oldsize+p.maxnodeincrease) {
		nodesize = oldsize + p.maxnodeincrease
	}
	if (nodesize > p.maxnodesize) && (p.maxnodesize > 0) {
		nodesize = p.maxnodesize
	}
	if nodesize <= oldsize {
		return errMemory
	}
	tmp := p.nodes
	p.nodes = make([]vertex, nodesize)
	copy(p.nodes, tmp)
	for n := oldsize; n < nodesize; n++ {
		p.nodes[n].refcou = 0
		p.nodes[n].level = 0
		p.nodes[n].low = -1
		p.nodes[n].high = n + 1
	}
	p.nodes[nodesize-1].high = p.freepos
	p.freepos = oldsize
	p.freenum += (nodesize - oldsize)
	if klog.V(4).Enabled() {
		klog.Infof("diagram resized from %d to %d vertices", oldsize, nodesize)
	}
	return errResize
}

func (p *pool) markrec(n int) {
	if n < 2 || p.ismarked(n) || (p.nodes[n].low == -1) {
		return
	}
	p.marknode(n)
	p.markrec(p.nodes[n].low)
	p.markrec(p.nodes[n].high)
}

// Internal reference stack. Intermediate results of recursive operations are
// pushed there so that a collection triggered by makenode cannot reclaim them.

func (p *pool) initref() {
	p.refstack = p.refstack[:0]
}

func (p *pool) pushref(n int) int {
	p.refstack = append(p.refstack, n)
	return n
}

func (p *pool) popref(a int) {
	p.refstack = p.refstack[:len(p.refstack)-a]
}

// retain protects n from garbage collection until a matching release.
func (p *pool) retain(n int) int {
	if n > 1 && p.nodes[n].refcou < _MAXREFCOUNT {
		p.nodes[n].refcou++
	}
	return n
}

// release drops an external reference taken with retain.
func (p *pool) release(n int) {
	if n > 1 && p.nodes[n].refcou > 0 && p.nodes[n].refcou < _MAXREFCOUNT {
		p.nodes[n].refcou--
	}
}

func (p *pool) size() int {
	return len(p.nodes)
}

func (p *pool) level(n int) int32 {
	return p.nodes[n].level
}

func (p *pool) low(n int) int {
	return p.nodes[n].low
}

func (p *pool) high(n int) int {
	return p.nodes[n].high
}
