package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ukiyo/internal/envelope"
	"ukiyo/internal/flow"
	"ukiyo/internal/provider"
	"ukiyo/internal/usage"
)

var (
	statusOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	statusErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func (a *app) askCmd() *cobra.Command {
	var (
		mode   string
		genre  string
		chars  int
		render bool
	)
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Run one mode locally and print the answer",
		Long: `Runs a mode flow against the configured providers without touching the
database. Modes: ` + strings.Join(flow.Modes(), ", "),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prompt := strings.Join(args, " ")

			tracker := usage.NewMemoryTracker()
			set, err := provider.NewSet(ctx, a.cfg, tracker)
			if err != nil {
				return err
			}

			env := envelope.New(prompt, mode, "")
			if err := a.newEngine(set).Run(ctx, mode, flow.Input{
				Prompt:       prompt,
				Goal:         prompt,
				Genre:        genre,
				DesiredChars: chars,
			}, env); err != nil {
				return err
			}

			text, source, status := env.Outcome()
			out := cmd.OutOrStdout()
			if render && text != "" {
				if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
					if rendered, err := r.Render(text); err == nil {
						text = rendered
					}
				}
			}
			fmt.Fprintln(out, text)

			stats := tracker.Stats()
			fmt.Fprintf(out, "%s %s\n",
				styleFor(status).Render(string(status)),
				dimStyle.Render(fmt.Sprintf("mode=%s source=%q calls=%d tokens=%d", mode, source, stats.Calls, stats.Total.Total)))

			if status == envelope.StatusError {
				return fmt.Errorf("mode %s failed: %s", mode, env.OverallError)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", flow.ModeBalance, "Mode to run")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre for superwriting (novel, report, essay, paper, short_story)")
	cmd.Flags().IntVar(&chars, "chars", 0, "Desired output length in characters for long-form modes")
	cmd.Flags().BoolVar(&render, "render", false, "Render the answer as Markdown")
	return cmd
}

func styleFor(s envelope.Status) lipgloss.Style {
	switch s {
	case envelope.StatusComplete:
		return statusOK
	case envelope.StatusError:
		return statusErr
	default:
		return statusWarn
	}
}
