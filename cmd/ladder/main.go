// Command ladder prints the condition price ladder for a set of reference
// prices, the same computation the API runs after an analysis.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/justsurfingit/resale-lister/internal/pricing"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type ladderFlags struct {
	prices    map[string]*float64
	condition string
	category  string
	facets    []string
	special   bool
}

func newRootCmd() *cobra.Command {
	f := ladderFlags{prices: make(map[string]*float64)}

	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Price an item across every condition",
		Long: `Build the condition price ladder from whatever reference prices are known.
Missing tiers are derived from the nearest known one. With --special, the
category and facet uplift is applied to every condition except For Parts.`,
		Example:       "  ladder --new 200 --used-mid 120 --condition good --category sneakers --facet original_packaging --special",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := pricing.ReferencePrices{}
			targets := map[string]**float64{
				"new":       &ref.New,
				"used-high": &ref.UsedHigh,
				"used-mid":  &ref.UsedMid,
				"used-low":  &ref.UsedLow,
				"parts":     &ref.Parts,
			}
			for name, dst := range targets {
				if cmd.Flags().Changed(name) {
					*dst = f.prices[name]
				}
			}
			return runLadder(cmd.OutOrStdout(), ref, f)
		},
	}

	for _, name := range []string{"new", "used-high", "used-mid", "used-low", "parts"} {
		v := new(float64)
		f.prices[name] = v
		cmd.Flags().Float64Var(v, name, 0, fmt.Sprintf("reference price for the %s tier", name))
	}
	cmd.Flags().StringVarP(&f.condition, "condition", "c", "", "condition to suggest a price for (e.g. good, like new)")
	cmd.Flags().StringVar(&f.category, "category", "general", "category used to look up facet uplifts")
	cmd.Flags().StringArrayVar(&f.facets, "facet", nil, "value facet of the item; repeatable")
	cmd.Flags().BoolVar(&f.special, "special", false, "apply the facet uplift")
	return cmd
}

func runLadder(w io.Writer, ref pricing.ReferencePrices, f ladderFlags) error {
	facets := make([]pricing.Facet, 0, len(f.facets))
	for _, name := range f.facets {
		facets = append(facets, pricing.Facet{Name: name})
	}
	uplift := pricing.Uplift(f.category, facets, f.special)

	ladder, err := pricing.BuildLadder(ref, uplift)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CONDITION\tPRICE\n")
	for _, r := range ladder.Rungs {
		fmt.Fprintf(tw, "%s\t%.2f\n", r.Condition, r.Price)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "uplift: %.0f%%\n", ladder.Uplift*100)

	if f.condition == "" {
		return nil
	}
	cond, err := pricing.ParseCondition(f.condition)
	if err != nil {
		return err
	}
	s, err := pricing.Suggest(pricing.Input{
		Reference: ref,
		Condition: cond,
		Category:  f.category,
		Facets:    facets,
		Special:   f.special,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "suggested %s: %.2f\n", s.Condition, s.Price)
	return nil
}
