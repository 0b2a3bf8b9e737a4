package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/normalize"
	"github.com/foldingvectors/prism/internal/registry"
	"github.com/foldingvectors/prism/internal/synthesis"
)

var (
	analyzeSelectors []string
	analyzeOwner     string
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a document from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		document, err := readDocument(args)
		if err != nil {
			return err
		}

		selectors := analyzeSelectors
		if len(selectors) == 0 {
			selectors = registry.DefaultSelectors
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		analysis, err := env.Analyzer.Analyze(cmd.Context(), analyzer.Request{
			OwnerEmail: analyzeOwner,
			Document:   document,
			Selectors:  selectors,
		})
		if err != nil {
			return err
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}

		fmt.Printf("Analysis %s: %s\n\n", analysis.ID, analysis.Title)

		inputs := make([]synthesis.Input, 0, len(analysis.Selectors))
		for _, sel := range analysis.Selectors {
			name := sel
			if p, ok := registry.Resolve(sel); ok {
				name = p.Name
			}
			res := normalize.Parse(analysis.Results[sel])
			inputs = append(inputs, synthesis.Input{Selector: sel, Name: name, Result: res})

			if !res.Parsed {
				fmt.Printf("%s: (unstructured response)\n", name)
				continue
			}
			if v, ok := res.Lookup("summary"); ok && v.Kind == normalize.KindScalar {
				fmt.Printf("%s: %s\n", name, v.Scalar)
			}
		}

		report := synthesis.Synthesize(inputs)
		fmt.Printf("\nComposite score: %.1f/10\n", report.Composite)
		for _, a := range report.Agreements {
			fmt.Printf("  + %s\n", a.Text)
		}
		for _, tn := range report.Tensions {
			fmt.Printf("  ~ %s\n", tn.Text)
		}

		return nil
	},
}

func readDocument(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", eris.Wrapf(err, "read document %s", args[0])
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", eris.Wrap(err, "read document from stdin")
	}
	return string(data), nil
}

func init() {
	analyzeCmd.Flags().StringSliceVarP(&analyzeSelectors, "perspectives", "p", nil,
		"perspective ids to run (default investor,legal,strategy)")
	analyzeCmd.Flags().StringVar(&analyzeOwner, "as", "cli@localhost", "owner email recorded on the analysis")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the raw analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
