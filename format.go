// Copyright 2021. Silvano DAL ZILIO.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package fta

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// FormatProduct returns a product as a space-separated conjunction of event
// names, prefixing complemented events with a tilde.
func (r *Result) FormatProduct(p Product) string {
	parts := make([]string, len(p))
	for i, lit := range p {
		name := r.Events[abs(lit)-1]
		if lit < 0 {
			name = "~" + name
		}
		parts[i] = name
	}
	return strings.Join(parts, " ")
}

// Print outputs a textual report of the result on the standard output.
func (r *Result) Print() {
	r.Fprint(os.Stdout)
}

// Fprint writes a textual report of the result: warnings, probability, the
// family of products and, when computed, a table of importance factors.
func (r *Result) Fprint(w io.Writer) {
	fmt.Fprintf(w, "model:       %s\n", r.Model)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning:     %s\n", warn)
	}
	fmt.Fprintf(w, "probability: %g\n", r.PTotal)
	fmt.Fprintf(w, "products:    %d\n", len(r.Products))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range r.Products {
		fmt.Fprintf(tw, "  {%d}\t%s\n", len(p), r.FormatProduct(p))
	}
	tw.Flush()
	if r.Importance != nil {
		names := make([]string, 0, len(r.Importance))
		for name := range r.Importance {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(tw, "event\tMIF\tCIF\tDIF\tRAW\tRRW\n")
		for _, name := range names {
			f := r.Importance[name]
			fmt.Fprintf(tw, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n", name, f.MIF, f.CIF, f.DIF, f.RAW, f.RRW)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "time:        products %s, probability %s, importance %s\n",
		r.ProductGenTime, r.ProbTime, r.ImpTime)
}
