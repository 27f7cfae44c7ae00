package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/dispatchd/internal/services"
)

func newServicesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List registries and their services",
		Long: `List every registry in processing order with its services and their
parameters. Optional parameters are shown with their defaults.

Examples:
  dispatchd services
  dispatchd services --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := services.NewCatalog(services.Options{})
			if err != nil {
				return err
			}
			return writeListing(cmd.OutOrStdout(), catalog.Describe(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeListing(w io.Writer, regs []services.RegistryInfo, output string) error {
	switch output {
	case "text":
		for _, reg := range regs {
			fmt.Fprintln(w, reg.Name)
			for _, svc := range reg.Services {
				fmt.Fprintf(w, "  %s(%s)\n", svc.Name, signature(svc))
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(regs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(regs); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", output)
}

// signature renders "a, b, c=default".
func signature(svc services.ServiceInfo) string {
	parts := make([]string, 0, len(svc.Required)+len(svc.Optional))
	parts = append(parts, svc.Required...)
	for _, p := range svc.Optional {
		parts = append(parts, fmt.Sprintf("%s=%v", p.Name, p.Default))
	}
	return strings.Join(parts, ", ")
}
