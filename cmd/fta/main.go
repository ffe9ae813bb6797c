// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

// Command fta computes the minimal cut sets, the top event probability and
// the importance factors of fault-tree models in the Open-PSA exchange
// format.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dalzilio/fta"
	"github.com/dalzilio/fta/mef"
)

func main() {
	cmd := newCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fta:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		settingsFile string
		approx       string
		limitOrder   int
		cutOff       float64
		ccf          bool
		imp          bool
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:           "fta [flags] model.xml ...",
		Short:         "fault-tree analysis of Open-PSA models",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := fta.DefaultSettings()
			if settingsFile != "" {
				var err error
				if s, err = fta.LoadSettings(settingsFile); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("approx") {
				s.Approx = fta.Approx(approx)
			}
			if cmd.Flags().Changed("limit-order") {
				s.LimitOrder = limitOrder
			}
			if cmd.Flags().Changed("cut-off") {
				s.CutOff = cutOff
			}
			if ccf {
				s.CCFAnalysis = true
			}
			if imp {
				s.ImportanceAnalysis = true
			}
			models := make([]*mef.Model, len(args))
			for i, path := range args {
				m, err := mef.DecodeFile(path)
				if err != nil {
					return err
				}
				models[i] = m
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			results, err := fta.AnalyzeAll(ctx, models, fta.WithSettings(s))
			if err != nil {
				return err
			}
			for _, r := range results {
				r.Print()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&settingsFile, "settings", "", "YAML settings file")
	cmd.Flags().StringVar(&approx, "approx", string(fta.ApproxNone), "probability method (none, rare-event, mcub)")
	cmd.Flags().IntVar(&limitOrder, "limit-order", 0, "maximal number of literals in a product (0 for no limit)")
	cmd.Flags().Float64Var(&cutOff, "cut-off", 0, "probability floor under which products are discarded")
	cmd.Flags().BoolVar(&ccf, "ccf", false, "expand common-cause failure groups")
	cmd.Flags().BoolVar(&imp, "importance", false, "compute importance factors")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the analyses after this duration")
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	cmd.PersistentFlags().AddGoFlagSet(fs)
	return cmd
}
