package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polisai/errorflow/pkg/catalog"
	"github.com/polisai/errorflow/pkg/domain"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Describe the error catalog",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}

	cmd.Flags().String("catalog", "", "Path to a catalog file replacing the built-in one")
	cmd.Flags().StringP("output", "o", outputText, "Output format (text, json)")
	cmd.Flags().Bool("raw", false, "Print the built-in catalog document, a starting point for custom catalogs")

	return cmd
}

type catalogDump struct {
	Scenarios  []catalog.Scenario                   `json:"scenarios"`
	Templates  map[domain.Category][]domain.Template `json:"templates"`
	CodeRanges []catalog.CodeRange                  `json:"codeRanges"`
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		_, err := out.Write(catalog.Builtin())
		return err
	}

	path, _ := cmd.Flags().GetString("catalog")
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutput(output); err != nil {
		return err
	}

	cat, err := loadCatalog(path)
	if err != nil {
		return err
	}

	if output == outputJSON {
		dump := catalogDump{
			Scenarios:  cat.Scenarios(),
			Templates:  make(map[domain.Category][]domain.Template),
			CodeRanges: cat.CodeRanges(),
		}
		for _, c := range domain.Categories() {
			dump.Templates[c] = cat.Templates(c)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}

	for _, sc := range cat.Scenarios() {
		fmt.Fprintf(out, "%s %s (%s)\n", sc.Category.Icon(), sc.Name, sc.Category)
		fmt.Fprintf(out, "  %s\n", sc.Description)
		for _, ex := range sc.Examples {
			fmt.Fprintf(out, "  %d %s: %s\n", ex.Code, ex.Name, ex.Description)
		}
		fmt.Fprintln(out, "  Templates:")
		for _, t := range cat.Templates(sc.Category) {
			fmt.Fprintf(out, "    %d %-8s %s\n", t.Code, t.Severity, t.UserMessage)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "HTTP status classes:")
	for _, r := range cat.CodeRanges() {
		rare := ""
		if r.Rare {
			rare = " (rare)"
		}
		fmt.Fprintf(out, "  %s %s%s: %s, e.g. %s\n", r.Range, r.Name, rare, r.Description, r.Example)
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog.yaml>",
		Short: "Validate a catalog file and optionally a disclosure policy",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("policy", "", "Path to a Rego disclosure policy to compile")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, e := range joined.Unwrap() {
				fmt.Fprintf(out, "  - %v\n", e)
			}
		}
		return fmt.Errorf("catalog is invalid: %w", err)
	}

	total := 0
	for _, n := range cat.Size() {
		total += n
	}
	fmt.Fprintf(out, "catalog OK: %d templates in %d categories\n", total, len(cat.Size()))

	if policyPath, _ := cmd.Flags().GetString("policy"); policyPath != "" {
		if _, err := loadPolicy(cmd.Context(), policyPath); err != nil {
			return err
		}
		fmt.Fprintln(out, "policy OK")
	}
	return nil
}
