package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/quote-cli/internal/incoterm"
	"github.com/sells-group/quote-cli/internal/model"
)

var incotermCmd = &cobra.Command{
	Use:   "incoterm [CODE...]",
	Short: "Describe the legs each Incoterm leaves to the buyer",
	Long:  "Without arguments lists every supported code. Rules come from the standard table, overlaid by quote.incoterm_rules when set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := incoterm.Default()
		if cfg != nil && cfg.Quote.IncotermRules != "" {
			r, err := incoterm.LoadRules(cfg.Quote.IncotermRules)
			if err != nil {
				return err
			}
			rules = r
		}
		return describeIncoterms(os.Stdout, rules, args)
	},
}

var legNames = map[model.Leg]string{
	model.LegOriginInland: "origin->POL",
	model.LegMain:         "POL->POD",
	model.LegDestInland:   "POD->destination",
}

func describeIncoterms(w io.Writer, rules *incoterm.Table, codes []string) error {
	if len(codes) == 0 {
		codes = rules.Codes()
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tFLOW\tLEGS\tBUYER PAYS")
	for _, code := range codes {
		plan, err := rules.Lookup(code)
		if err != nil {
			tw.Flush() //nolint:errcheck
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", incoterm.Canonical(code), plan.Flow, legDigits(plan.Legs), buyerPays(plan))
	}
	return tw.Flush()
}

func legDigits(legs []model.Leg) string {
	if len(legs) == 0 {
		return "-"
	}
	parts := make([]string, len(legs))
	for i, l := range legs {
		parts[i] = fmt.Sprintf("%d", l)
	}
	return strings.Join(parts, ",")
}

func buyerPays(plan model.LegPlan) string {
	if plan.Flow == model.FlowInland {
		return "origin->destination (road)"
	}
	if len(plan.Legs) == 0 {
		return "nothing (seller delivers duty paid)"
	}
	parts := make([]string, len(plan.Legs))
	for i, l := range plan.Legs {
		parts[i] = legNames[l]
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(incotermCmd)
}
