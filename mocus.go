// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"context"
	"sort"

	"k8s.io/klog/v2"
)

// Product is a minimal cut set: a conjunction of signed basic-event indices.
// A negative value stands for the complement of the event.
type Product []int

// mocus computes the family of minimal cut sets of a preprocessed graph,
// module by module. The limit bounds the order of the generated sets; zero
// means no bound.
func mocus(ctx context.Context, g *Graph, limit int) ([]Product, error) {
	root := g.Root()
	if root == nil {
		return nil, logicf("product generation on a graph without a root")
	}
	if root.IsConstant() {
		if root.ConstantValue() {
			// the top holds with certainty, the only minimal cut set is empty
			return []Product{{}}, nil
		}
		return nil, nil
	}
	c := newCutsets(g, limit)
	n, err := c.analyze(ctx, root)
	if err != nil {
		return nil, err
	}
	defer c.z.release(n)
	if klog.V(2).Enabled() {
		klog.Infof("product generation done, %d products, %d vertices produced", c.z.count(n), c.z.produced)
	}
	return c.products(n)
}

// analyze computes the family of minimal cut sets of one module gate. The
// result is retained in the arena; the caller must release it.
func (c *cutsets) analyze(ctx context.Context, gate *Gate) (int, error) {
	z := c.z
	n := z.retain(c.convertGate(gate))
	// expansion loop: substitute non-module gates until only module
	// placeholders and variables remain
	for {
		if err := ctx.Err(); err != nil {
			z.release(n)
			return 0, err
		}
		if c.nextGate(n) == nil {
			break
		}
		n = c.replace(n, c.expandTop(n))
	}
	n = c.replace(n, z.minimize(n))
	if !c.g.Coherent() {
		n = c.replace(n, c.dropConflicts(n))
		n = c.replace(n, z.minimize(n))
	}
	// modules are independent, so their own minimal cut sets substitute
	// directly for their placeholder
	for _, lv := range c.gatherModules(n) {
		if err := ctx.Err(); err != nil {
			z.release(n)
			return 0, err
		}
		sub, err := c.analyze(ctx, c.lvMod[lv])
		if err != nil {
			z.release(n)
			return 0, err
		}
		joined := c.joinModule(n, lv, sub)
		z.release(sub)
		n = c.replace(n, joined)
	}
	n = c.replace(n, z.minimize(n))
	if c.limit < unlimited {
		n = c.replace(n, z.prune(n, c.limit))
	}
	return n, nil
}

// products extracts the family rooted at n as a sorted slice of signed
// basic-event indices. No placeholder literal may remain at this point.
func (c *cutsets) products(n int) ([]Product, error) {
	res := make([]Product, 0, c.z.count(n))
	err := c.z.eachSet(n, func(set []int32) error {
		p := make(Product, len(set))
		for i, lv := range set {
			if lv < c.varBase {
				return logicf("placeholder literal left in a product (level %d)", lv)
			}
			p[i] = c.litAt(lv)
		}
		sort.Slice(p, func(i, j int) bool { return abs(p[i]) < abs(p[j]) })
		res = append(res, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool {
		if len(res[i]) != len(res[j]) {
			return len(res[i]) < len(res[j])
		}
		for k := range res[i] {
			if abs(res[i][k]) != abs(res[j][k]) {
				return abs(res[i][k]) < abs(res[j][k])
			}
			if res[i][k] != res[j][k] {
				return res[i][k] > res[j][k]
			}
		}
		return false
	})
	return res, nil
}
