package main

import (
	"fmt"
	"strings"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/suite"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test cases in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, c := range suite.Cases() {
				if !verbose {
					fmt.Fprintln(out, c.Name)
					continue
				}
				steps := make([]string, len(c.Steps))
				for i, s := range c.Steps {
					steps[i] = s.Kind.String()
				}
				fmt.Fprintf(out, "%-50s %s\n", c.Name, strings.Join(steps, " -> "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the steps of each case")
	return cmd
}
