package voices

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/synthesis"
)

func NewVoicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the available voices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVoices(cmd.OutOrStdout(), synthesis.Voices())
		},
	}
}

func printVoices(w io.Writer, voices []config.Voice) {
	fmt.Fprintln(w, "Available voices:")
	for _, v := range voices {
		marker := " "
		if v.Name == config.DefaultVoice {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-22s %-8s %s\n", marker, v.Name, v.Locale, v.Label)
	}
}
