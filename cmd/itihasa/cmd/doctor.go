package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayodhya-labs/itihasa/internal/output"
	"github.com/ayodhya-labs/itihasa/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for problems",
		Long: `Run environment checks: disk space, write permissions, file
descriptor limits, and whether the configured Ollama server and models
are available. Ollama problems are warnings; querying degrades to
static embeddings and evidence-only answers without it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput, offline)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Ollama checks")

	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput, offline bool) error {
	root, cfg, err := resolveProject(projectDir)
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithOffline(offline),
		preflight.WithOllama(cfg.Embedder.OllamaHost, cfg.Embedder.Model, cfg.Generator.Model),
	)
	results := checker.RunAll(cmd.Context(), root)
	status := preflight.SummaryStatus(results)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		payload := struct {
			Status string                  `json:"status"`
			Checks []preflight.CheckResult `json:"checks"`
		}{Status: status, Checks: results}
		if err := enc.Encode(payload); err != nil {
			return err
		}
	} else {
		printDoctorResults(output.NewAuto(cmd.OutOrStdout()), results, status)
	}

	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("environment checks failed")
	}
	return nil
}

func printDoctorResults(out *output.Writer, results []preflight.CheckResult, status string) {
	out.Heading("Environment checks")
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch r.Status {
		case preflight.StatusPass:
			out.Success(line)
		case preflight.StatusWarn:
			out.Warning(line)
		default:
			out.Error(line)
		}
		if r.Details != "" {
			out.Status("", "  "+r.Details)
		}
	}
	out.Newline()
	out.Statusf("", "Status: %s", status)
}
