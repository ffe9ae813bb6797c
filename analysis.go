// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package fta

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/dalzilio/fta/mef"
)

// Result collects the outcome of the analysis of one fault-tree model.
type Result struct {
	// Model is the name of the analyzed model.
	Model string
	// Events maps variable indices to basic event names: the event with
	// index v is Events[v-1].
	Events []string
	// Products is the family of minimal cut sets, sorted by increasing order.
	Products []Product
	// PTotal is the probability of the top event.
	PTotal float64
	// Importance holds the importance factors by basic event name. It is nil
	// unless importance analysis was requested.
	Importance map[string]ImportanceFactors
	// Warnings reports recoverable conditions found during the analysis.
	Warnings []string
	// Timing totals for the three stages of the analysis.
	ProductGenTime time.Duration
	ProbTime       time.Duration
	ImpTime        time.Duration
}

// Analyze computes the minimal cut sets, the top event probability and,
// on request, the importance factors of a fault-tree model.
func Analyze(ctx context.Context, m *mef.Model, opts ...Option) (res *Result, err error) {
	s := DefaultSettings()
	for _, o := range opts {
		o(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, Validityf("invalid model %q: %s", m.Name, err)
	}
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *LimitError:
				err = errors.Wrapf(e, "analysis of model %q", m.Name)
			case *LogicError:
				err = errors.Wrapf(e, "analysis of model %q", m.Name)
			default:
				panic(r)
			}
		}
	}()
	if s.CCFAnalysis && len(m.CCFGroups) > 0 {
		m = expandedCopy(m)
	}
	graph, events := buildGraph(m)
	res = &Result{Model: m.Name, Events: events}
	pr := make([]float64, len(events))
	for i, name := range events {
		pr[i] = m.BasicEvent(name).Prob
	}

	start := time.Now()
	warnings, err := Preprocess(ctx, graph)
	if err != nil {
		return nil, errors.Wrapf(err, "preprocessing model %q", m.Name)
	}
	res.Warnings = warnings
	products, err := mocus(ctx, graph, s.LimitOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "product generation for model %q", m.Name)
	}
	res.Products = cutOff(products, pr, s.CutOff)
	res.ProductGenTime = time.Since(start)

	start = time.Now()
	var b *bdd
	root := 0
	if s.Approx == ApproxNone {
		b, root = buildBdd(graph)
	}
	res.PTotal = probability(s.Approx, b, root, res.Products, pr)
	res.ProbTime = time.Since(start)

	if s.ImportanceAnalysis {
		start = time.Now()
		factors := importance(s.Approx, b, root, res.Products, pr, res.PTotal)
		res.Importance = make(map[string]ImportanceFactors, len(factors))
		for v, f := range factors {
			res.Importance[events[v-1]] = f
		}
		res.ImpTime = time.Since(start)
	}
	if klog.V(2).Enabled() {
		klog.Infof("analysis of %q done, %d products, p=%g (products %s, probability %s, importance %s)",
			m.Name, len(res.Products), res.PTotal, res.ProductGenTime, res.ProbTime, res.ImpTime)
	}
	return res, nil
}

// AnalyzeAll runs one analysis per model, in parallel. Analyses share nothing;
// each one owns its graph and diagram arenas. The first error cancels the
// remaining analyses.
func AnalyzeAll(ctx context.Context, models []*mef.Model, opts ...Option) ([]*Result, error) {
	grp, ctx := errgroup.WithContext(ctx)
	res := make([]*Result, len(models))
	for i, m := range models {
		i, m := i, m
		grp.Go(func() error {
			r, err := Analyze(ctx, m, opts...)
			if err != nil {
				return err
			}
			res[i] = r
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// expandedCopy returns a copy of the model with its common-cause groups
// expanded, leaving the original intact.
func expandedCopy(m *mef.Model) *mef.Model {
	c := *m
	c.BasicEvents = append([]*mef.BasicEvent(nil), m.BasicEvents...)
	c.HouseEvents = append([]*mef.HouseEvent(nil), m.HouseEvents...)
	c.Gates = append([]*mef.Gate(nil), m.Gates...)
	c.CCFGroups = append([]*mef.CCFGroup(nil), m.CCFGroups...)
	c.ExpandCCF()
	return &c
}

var gateOps = map[mef.Op]GateOp{
	mef.OpAnd:     OpAnd,
	mef.OpOr:      OpOr,
	mef.OpAtleast: OpAtleast,
	mef.OpXor:     OpXor,
	mef.OpNot:     OpNot,
	mef.OpNand:    OpNand,
	mef.OpNor:     OpNor,
	mef.OpNull:    OpNull,
}

// buildGraph converts a validated model to a graph, returning the basic event
// names in variable index order.
func buildGraph(m *mef.Model) (*Graph, []string) {
	events := make([]string, len(m.BasicEvents))
	index := make(map[string]int, len(m.BasicEvents))
	for i, e := range m.BasicEvents {
		events[i] = e.Name
		index[e.Name] = i + 1
	}
	g := NewGraph(len(events))
	memo := make(map[string]*Gate)
	var conv func(mg *mef.Gate) *Gate
	conv = func(mg *mef.Gate) *Gate {
		if gate, ok := memo[mg.Name]; ok {
			return gate
		}
		var gate *Gate
		if mg.Formula.Op == mef.OpAtleast {
			gate = g.NewVoteGate(mg.Formula.K)
		} else {
			gate = g.NewGate(gateOps[mg.Formula.Op])
		}
		memo[mg.Name] = gate
		for _, a := range mg.Formula.Args {
			if v, ok := index[a]; ok {
				if gate.AddArg(v, g.Variable(v)) {
					break
				}
				continue
			}
			if he := m.HouseEvent(a); he != nil {
				var c *Constant
				if he.State {
					c = g.TrueConstant()
				} else {
					c = g.FalseConstant()
				}
				if gate.AddArg(c.Index(), c) {
					break
				}
				continue
			}
			sub := conv(m.Gate(a))
			var done bool
			if sub.IsConstant() {
				// a collapsed gate contributes its constant value
				var c *Constant
				if sub.ConstantValue() {
					c = g.TrueConstant()
				} else {
					c = g.FalseConstant()
				}
				done = gate.AddArg(c.Index(), c)
			} else {
				done = gate.AddArg(sub.Index(), sub)
			}
			if done {
				break
			}
		}
		return gate
	}
	root := conv(m.Gate(m.Top))
	g.SetRoot(root)
	return g, events
}
