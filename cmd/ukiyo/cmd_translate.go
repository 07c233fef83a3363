package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ukiyo/internal/provider"
	"ukiyo/internal/usage"
)

func (a *app) translateCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text with DeepL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := provider.NewSet(cmd.Context(), a.cfg, usage.NewMemoryTracker())
			if err != nil {
				return err
			}
			out, err := set.Translator.Translate(cmd.Context(), strings.Join(args, " "), to)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "EN-US", "Target language code")
	return cmd
}
