// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package mef

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// xnode is a generic element of an Open-PSA document. Formula elements carry
// their operator in the element name, so we decode to a uniform tree first
// and interpret it afterwards.
type xnode struct {
	XMLName xml.Name
	Name    string  `xml:"name,attr"`
	Min     string  `xml:"min,attr"`
	Value   string  `xml:"value,attr"`
	Model   string  `xml:"model,attr"`
	Level   string  `xml:"level,attr"`
	Nodes   []xnode `xml:",any"`
}

// DecodeFile reads an Open-PSA MEF document from a file. See Decode.
func DecodeFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model file %s", path)
	}
	defer f.Close()
	m, err := Decode(f)
	return m, errors.Wrapf(err, "decoding model file %s", path)
}

// Decode reads a fault-tree model from an Open-PSA MEF document. The
// supported subset covers fault-tree, gate, basic-event, house-event and
// CCF-group definitions. Nested formulas are given intermediate gates. The
// top gate of the model is the first gate defined in the first fault tree.
// The resulting model is not validated.
func Decode(r io.Reader) (*Model, error) {
	var root xnode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, err
	}
	if root.XMLName.Local != "opsa-mef" {
		return nil, errors.Errorf("unexpected root element <%s>", root.XMLName.Local)
	}
	m := &Model{}
	for _, el := range root.Nodes {
		switch el.XMLName.Local {
		case "define-fault-tree":
			if m.Name == "" {
				m.Name = el.Name
			}
			if err := m.decodeDefines(el.Nodes); err != nil {
				return nil, err
			}
		case "model-data":
			if err := m.decodeDefines(el.Nodes); err != nil {
				return nil, err
			}
		case "label", "attributes":
		default:
			if err := m.decodeDefines([]xnode{el}); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Model) decodeDefines(els []xnode) error {
	for _, el := range els {
		var err error
		switch el.XMLName.Local {
		case "define-gate":
			err = m.decodeGate(el)
		case "define-basic-event":
			err = m.decodeBasicEvent(el)
		case "define-house-event":
			err = m.decodeHouseEvent(el)
		case "define-CCF-group":
			err = m.decodeCCFGroup(el)
		case "label", "attributes":
		default:
			err = errors.Errorf("unsupported element <%s>", el.XMLName.Local)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) decodeGate(el xnode) error {
	if el.Name == "" {
		return errors.New("gate definition without a name")
	}
	var formula *xnode
	for i, sub := range el.Nodes {
		if sub.XMLName.Local == "label" || sub.XMLName.Local == "attributes" {
			continue
		}
		if formula != nil {
			return errors.Errorf("gate %q has more than one formula", el.Name)
		}
		formula = &el.Nodes[i]
	}
	if formula == nil {
		return errors.Errorf("gate %q has no formula", el.Name)
	}
	if err := m.decodeFormula(el.Name, *formula); err != nil {
		return err
	}
	if m.Top == "" {
		m.Top = el.Name
	}
	return nil
}

// decodeFormula defines a gate with the given name from a formula element.
func (m *Model) decodeFormula(name string, el xnode) error {
	var op Op
	switch el.XMLName.Local {
	case "and":
		op = OpAnd
	case "or":
		op = OpOr
	case "atleast":
		op = OpAtleast
	case "xor":
		op = OpXor
	case "not":
		op = OpNot
	case "nand":
		op = OpNand
	case "nor":
		op = OpNor
	case "null":
		op = OpNull
	case "gate", "basic-event", "house-event", "event":
		// a bare reference defines a pass-through gate
		m.Gates = append(m.Gates, &Gate{Name: name, Formula: Formula{Op: OpNull, Args: []string{el.Name}}})
		return nil
	default:
		return errors.Errorf("unsupported formula element <%s> in gate %q", el.XMLName.Local, name)
	}
	f := Formula{Op: op}
	if op == OpAtleast {
		k, err := strconv.Atoi(el.Min)
		if err != nil {
			return errors.Errorf("atleast gate %q has invalid minimum number %q", name, el.Min)
		}
		f.K = k
	}
	for _, sub := range el.Nodes {
		switch sub.XMLName.Local {
		case "gate", "basic-event", "house-event", "event":
			if sub.Name == "" {
				return errors.Errorf("unnamed reference in gate %q", name)
			}
			f.Args = append(f.Args, sub.Name)
		default:
			// nested formula, hoisted to an intermediate gate
			subname := fmt.Sprintf("%s.%d", name, len(f.Args))
			if err := m.decodeFormula(subname, sub); err != nil {
				return err
			}
			f.Args = append(f.Args, subname)
		}
	}
	m.Gates = append(m.Gates, &Gate{Name: name, Formula: f})
	return nil
}

func (m *Model) decodeBasicEvent(el xnode) error {
	if el.Name == "" {
		return errors.New("basic event definition without a name")
	}
	e := &BasicEvent{Name: el.Name}
	for _, sub := range el.Nodes {
		if sub.XMLName.Local != "float" {
			continue
		}
		p, err := strconv.ParseFloat(sub.Value, 64)
		if err != nil {
			return errors.Errorf("basic event %q has invalid probability %q", el.Name, sub.Value)
		}
		e.Prob = p
	}
	m.BasicEvents = append(m.BasicEvents, e)
	return nil
}

func (m *Model) decodeHouseEvent(el xnode) error {
	if el.Name == "" {
		return errors.New("house event definition without a name")
	}
	e := &HouseEvent{Name: el.Name}
	for _, sub := range el.Nodes {
		if sub.XMLName.Local != "constant" {
			continue
		}
		switch sub.Value {
		case "true":
			e.State = true
		case "false":
			e.State = false
		default:
			return errors.Errorf("house event %q has invalid state %q", el.Name, sub.Value)
		}
	}
	m.HouseEvents = append(m.HouseEvents, e)
	return nil
}

func (m *Model) decodeCCFGroup(el xnode) error {
	if el.Name == "" {
		return errors.New("CCF group definition without a name")
	}
	grp := &CCFGroup{Name: el.Name, Model: el.Model}
	type leveled struct {
		level  int
		factor float64
	}
	var factors []leveled
	addFactor := func(el xnode) error {
		lf := leveled{level: 2 + len(factors)}
		if el.Level != "" {
			lv, err := strconv.Atoi(el.Level)
			if err != nil {
				return errors.Errorf("CCF group %q has invalid factor level %q", grp.Name, el.Level)
			}
			lf.level = lv
		}
		for _, sub := range el.Nodes {
			if sub.XMLName.Local != "float" {
				continue
			}
			f, err := strconv.ParseFloat(sub.Value, 64)
			if err != nil {
				return errors.Errorf("CCF group %q has invalid factor %q", grp.Name, sub.Value)
			}
			lf.factor = f
		}
		factors = append(factors, lf)
		return nil
	}
	for _, sub := range el.Nodes {
		switch sub.XMLName.Local {
		case "members":
			for _, mb := range sub.Nodes {
				if mb.XMLName.Local == "basic-event" {
					grp.Members = append(grp.Members, mb.Name)
				}
			}
		case "distribution":
			for _, d := range sub.Nodes {
				if d.XMLName.Local != "float" {
					continue
				}
				q, err := strconv.ParseFloat(d.Value, 64)
				if err != nil {
					return errors.Errorf("CCF group %q has invalid distribution %q", grp.Name, d.Value)
				}
				grp.Q = q
			}
		case "factor":
			if err := addFactor(sub); err != nil {
				return err
			}
		case "factors":
			for _, f := range sub.Nodes {
				if f.XMLName.Local != "factor" {
					continue
				}
				if err := addFactor(f); err != nil {
					return err
				}
			}
		case "label", "attributes":
		}
	}
	sort.Slice(factors, func(i, j int) bool { return factors[i].level < factors[j].level })
	for _, lf := range factors {
		grp.Factors = append(grp.Factors, lf.factor)
	}
	m.CCFGroups = append(m.CCFGroups, grp)
	return nil
}
