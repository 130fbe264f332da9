package cmd

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"kubeop/internal/formatting"
	"kubeop/internal/selector"
)

var selectorOutputFormat string

// selectorResult is the structured output of the selector commands.
type selectorResult struct {
	Predicate string `json:"predicate"`
	Flavor    string `json:"flavor"`
	Selector  string `json:"selector"`
	// Query is the selector as sent to the API server.
	Query      string `json:"query"`
	Everything bool   `json:"everything"`
}

func (r selectorResult) String() string { return r.Selector }

func (r selectorResult) Headers() []string { return []string{"Field", "Value"} }

func (r selectorResult) Rows() [][]string {
	return [][]string{
		{"predicate", r.Predicate},
		{"flavor", r.Flavor},
		{"selector", r.Selector},
		{"query", r.Query},
		{"everything", strconv.FormatBool(r.Everything)},
	}
}

var selectorCmd = &cobra.Command{
	Use:   "selector",
	Short: "Compile CEL predicates into field or label selectors",
	Long: `Compiles a CEL predicate over "self" into the selector the operators
would send to the API server. Only conjunctions of equalities between an
object path and a string constant are supported, for example:

  self.status.phase == "Running" && self.metadata.name == "web"
  self.metadata.labels["app"] == "web"

Anything else is rejected rather than approximated.`,
}

var selectorFieldsCmd = &cobra.Command{
	Use:     "fields PREDICATE",
	Short:   "Compile a predicate into a field selector",
	Example: `  kubeop selector fields 'self.status.phase == "Running"'`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelector(cmd.OutOrStdout(), args[0], "fields")
	},
}

var selectorLabelsCmd = &cobra.Command{
	Use:     "labels PREDICATE",
	Short:   "Compile a predicate into a label selector",
	Example: `  kubeop selector labels 'self.metadata.labels["app"] == "web"' -o yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelector(cmd.OutOrStdout(), args[0], "labels")
	},
}

func runSelector(out io.Writer, src, flavor string) error {
	pred, err := selector.ParseCEL(src)
	if err != nil {
		return err
	}

	result := selectorResult{Predicate: src, Flavor: flavor}
	switch flavor {
	case "fields":
		sel, err := selector.CompileFields(pred)
		if err != nil {
			return err
		}
		query, err := selector.ToFields(sel)
		if err != nil {
			return err
		}
		result.Selector, result.Query = sel.String(), query.String()
		result.Everything = sel.IsEverything()
	default:
		sel, err := selector.CompileLabels(pred)
		if err != nil {
			return err
		}
		query, err := selector.ToLabels(sel)
		if err != nil {
			return err
		}
		result.Selector, result.Query = sel.String(), query.String()
		result.Everything = sel.IsEverything()
	}

	return printSelector(out, result)
}

func printSelector(out io.Writer, result selectorResult) error {
	format, err := formatting.ParseFormat(selectorOutputFormat)
	if err != nil {
		return err
	}
	return formatting.NewFormatter(formatting.Options{Format: format, Out: out}).FormatData(result)
}

func init() {
	rootCmd.AddCommand(selectorCmd)
	selectorCmd.AddCommand(selectorFieldsCmd, selectorLabelsCmd)

	selectorCmd.PersistentFlags().StringVarP(&selectorOutputFormat, "output", "o", "text", "Output format (text, json, yaml, table)")
}
