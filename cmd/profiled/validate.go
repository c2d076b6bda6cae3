package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/generate"
	"github.com/GoSim-25-26J-441/serving-profiler/internal/objective"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// validOutputs defines the allowed validate output formats.
var validOutputs = []string{"text", "yaml"}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate <profile.yaml>",
		Short: "Validate a profile and print its search space",
		Long: `Validate a profile without starting a search.

Parses the profile, expands range-valued fields and checks objectives and
constraints. The text output lists the exploration grid of every model; the
yaml output prints the normalized profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text|yaml)")

	return cmd
}

func runValidate(w io.Writer, path, output string) error {
	profile, err := config.LoadProfile(path)
	if err != nil {
		return err
	}
	if _, err := objective.New(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	switch output {
	case "yaml":
		out, err := config.MarshalProfileYAML(profile)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "text":
		return printSearchSpace(w, path, profile)
	default:
		return fmt.Errorf("invalid output %q: must be one of %v", output, validOutputs)
	}
}

func printSearchSpace(w io.Writer, path string, profile *config.Profile) error {
	var b strings.Builder
	fmt.Fprintf(&b, "profile: %s\n", path)
	fmt.Fprintf(&b, "mode: %s (refinement: %t)\n", profile.Search.Mode, profile.IsAutomaticSearch())
	fmt.Fprintf(&b, "objectives: %s\n", formatWeights(profile.Objectives))

	total := 0
	for _, space := range generate.SearchSpace(profile) {
		source := "generated"
		if !space.Generated {
			source = "explicit"
		}
		fmt.Fprintf(&b, "model %s: %d variants x %d concurrencies (%s) = %d run configs\n",
			space.Model, len(space.Variants), len(space.Concurrencies), source, space.Size())
		fmt.Fprintf(&b, "  concurrency: %v\n", space.Concurrencies)
		for _, v := range space.Variants {
			params := models.FormatParameters(v.Parameters)
			if v.Default {
				params = "default"
			}
			fmt.Fprintf(&b, "  %s %s\n", v.Name, params)
		}
		total += space.Size()
	}
	fmt.Fprintf(&b, "exploration run configs: %d\n", total)

	_, err := io.WriteString(w, b.String())
	return err
}

func formatWeights(weights map[string]float64) string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, weights[name]))
	}
	return strings.Join(parts, ", ")
}
