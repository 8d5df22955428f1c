package models

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/pkg/config"
)

func NewModelsCommand() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the allow-listed models per provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printModels(cmd.OutOrStdout(), provider)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Only list models of this provider")

	return cmd
}

func printModels(w io.Writer, provider string) error {
	list := config.ProviderModelsList
	if provider != "" {
		p, ok := config.LookupProvider(provider)
		if !ok {
			return fmt.Errorf("unknown provider %q (available: %v)", provider, config.ProviderNames())
		}
		list = []config.ProviderModels{p}
	}

	for i, p := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", p.Provider)
		for _, info := range p.Info {
			marker := " "
			if info.ID == p.DefaultModel {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %-26s %-20s %d tokens\n", marker, info.ID, info.Name, info.ContextSize)
		}
	}
	return nil
}
