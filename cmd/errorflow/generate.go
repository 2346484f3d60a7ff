package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/errorflow/pkg/config"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/domain"
	"github.com/polisai/errorflow/pkg/generator"
	"github.com/polisai/errorflow/pkg/server"
	"github.com/polisai/errorflow/pkg/telemetry"
)

const maxGenerateCount = 1000

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate simulated errors without starting the server",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	cmd.Flags().String("category", "", "Error category (validation, authorization, system); empty picks one at random")
	cmd.Flags().IntP("count", "n", 1, "Number of errors to generate")
	cmd.Flags().Bool("debug", false, "Request disclosure of debug information")
	cmd.Flags().String("environment", config.EnvironmentDevelopment, "Environment passed to the disclosure policy")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible output (0 uses a random seed)")
	cmd.Flags().String("catalog", "", "Path to a catalog file replacing the built-in one")
	cmd.Flags().String("policy", "", "Path to a Rego disclosure policy replacing the built-in one")
	cmd.Flags().StringP("output", "o", outputText, "Output format (text, json)")

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	category, _ := flags.GetString("category")
	count, _ := flags.GetInt("count")
	debug, _ := flags.GetBool("debug")
	environment, _ := flags.GetString("environment")
	seed, _ := flags.GetUint64("seed")
	catalogPath, _ := flags.GetString("catalog")
	policyPath, _ := flags.GetString("policy")
	output, _ := flags.GetString("output")

	if err := checkOutput(output); err != nil {
		return err
	}
	environment, err := config.NormalizeEnvironment(environment)
	if err != nil {
		return err
	}
	if count < 1 || count > maxGenerateCount {
		return fmt.Errorf("count must be between 1 and %d, got %d", maxGenerateCount, count)
	}

	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}
	var opts []generator.Option
	if seed != 0 {
		opts = append(opts, generator.WithRandom(generator.NewSeededSource(seed)))
	}
	gen, err := generator.New(cat, opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	policy, err := loadPolicy(ctx, policyPath)
	if err != nil {
		return err
	}

	views := make([]server.ErrorView, 0, count)
	for range count {
		ctx, span := telemetry.Tracer().Start(ctx, "errorflow.cli.generate")
		start := time.Now()

		var appErr domain.AppError
		if category == "" {
			appErr = gen.GenerateRandom()
		} else {
			appErr, err = gen.GenerateNamed(category)
			if err != nil {
				span.End()
				return err
			}
		}
		telemetry.AnnotateError(span, appErr)
		telemetry.RecordGenerated(ctx, appErr, time.Since(start))

		decision, err := policy.Evaluate(ctx, disclosure.Input{
			DebugRequested: debug,
			Environment:    environment,
			Category:       appErr.Category,
			Severity:       appErr.Severity,
			Code:           appErr.Code,
		})
		span.End()
		if err != nil {
			return err
		}
		views = append(views, server.NewErrorView(appErr, decision))
	}

	out := cmd.OutOrStdout()
	if output == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printErrorView(out, v, debug)
	}
	return nil
}

func printErrorView(w io.Writer, v server.ErrorView, debugRequested bool) {
	fmt.Fprintf(w, "%s %d %s [%s, %s]\n", v.Icon, v.Code, v.Category, v.Severity, v.Emphasis)
	fmt.Fprintf(w, "  %s\n", v.UserMessage)
	if v.SuggestedAction != "" {
		fmt.Fprintf(w, "  Suggested action: %s\n", v.SuggestedAction)
	}
	if v.DocsURL != "" {
		fmt.Fprintf(w, "  Docs: %s\n", v.DocsURL)
	}
	fmt.Fprintf(w, "  ID: %s\n", v.ID)

	if v.DebugInfo == nil {
		if debugRequested {
			fmt.Fprintf(w, "  Debug info withheld: %s\n", v.Disclosure.Reason)
		}
		return
	}

	d := v.DebugInfo
	fmt.Fprintln(w, "  Debug info:")
	fmt.Fprintf(w, "    Technical message: %s\n", d.TechnicalMessage)
	fmt.Fprintf(w, "    Request ID: %s\n", d.RequestID)
	fmt.Fprintf(w, "    Timestamp: %s\n", d.Timestamp.Format(time.RFC3339))
	for _, key := range []string{"method", "endpoint", "ip", "userAgent"} {
		if val, ok := d.Context[key]; ok {
			fmt.Fprintf(w, "    %s: %s\n", key, val)
		}
	}
	if d.StackTrace != "" {
		fmt.Fprintln(w, "    Stack trace:")
		for _, line := range strings.Split(d.StackTrace, "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}
