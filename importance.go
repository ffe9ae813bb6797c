// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"math"
	"sort"
)

// ImportanceFactors groups the importance measures of one basic event with
// respect to the top event.
type ImportanceFactors struct {
	MIF float64 `json:"mif"` // Birnbaum marginal importance
	CIF float64 `json:"cif"` // criticality importance
	DIF float64 `json:"dif"` // Fussell-Vesely diagnosis importance
	RAW float64 `json:"raw"` // risk achievement worth
	RRW float64 `json:"rrw"` // risk reduction worth
}

// importance computes the importance factors of every basic event occurring
// in the products. Conditional probabilities are read off the diagram by
// restricting the event variable; under an approximation they are estimated
// on the family of products with the event probability forced to 0 or 1.
func importance(approx Approx, b *bdd, root int, products []Product, pr []float64, ptotal float64) map[int]ImportanceFactors {
	if ptotal <= 0 {
		return nil
	}
	occur := make(map[int]bool)
	for _, p := range products {
		for _, lit := range p {
			occur[abs(lit)] = true
		}
	}
	events := make([]int, 0, len(occur))
	for v := range occur {
		events = append(events, v)
	}
	sort.Ints(events)
	res := make(map[int]ImportanceFactors, len(events))
	for _, v := range events {
		p1, p0 := conditional(approx, b, root, products, pr, v)
		f := ImportanceFactors{
			MIF: p1 - p0,
			CIF: (p1 - p0) * pr[v-1] / ptotal,
			DIF: diagnosis(approx, products, pr, v, ptotal),
			RAW: p1 / ptotal,
		}
		if p0 > 0 {
			f.RRW = ptotal / p0
		} else {
			f.RRW = math.Inf(1)
		}
		res[v] = f
	}
	return res
}

// conditional returns the probability of the top event with the given
// variable fixed to true, then to false.
func conditional(approx Approx, b *bdd, root int, products []Product, pr []float64, v int) (p1, p0 float64) {
	if approx != ApproxNone {
		saved := pr[v-1]
		pr[v-1] = 1
		p1 = probability(approx, b, root, products, pr)
		pr[v-1] = 0
		p0 = probability(approx, b, root, products, pr)
		pr[v-1] = saved
		return p1, p0
	}
	gcs := len(b.history)
	r1 := b.retain(b.restrict(root, int32(v-1), true))
	r0 := b.retain(b.restrict(root, int32(v-1), false))
	if len(b.history) != gcs {
		// a collection may have recycled memoized slots
		b.flip()
	}
	p1 = b.prob(r1, pr)
	p0 = b.prob(r0, pr)
	b.release(r1)
	b.release(r0)
	return p1, p0
}

// diagnosis estimates the Fussell-Vesely factor of an event: the probability
// of the union of the products holding the event, relative to the total. The
// union is estimated with the rare-event sum unless the min-cut upper bound
// is in force.
func diagnosis(approx Approx, products []Product, pr []float64, v int, ptotal float64) float64 {
	holding := make([]Product, 0, len(products))
	for _, p := range products {
		for _, lit := range p {
			if abs(lit) == v {
				holding = append(holding, p)
				break
			}
		}
	}
	var num float64
	if approx == ApproxMCUB {
		num = mcub(holding, pr)
	} else {
		num = rareEvent(holding, pr)
	}
	if num > ptotal {
		return 1
	}
	return num / ptotal
}
