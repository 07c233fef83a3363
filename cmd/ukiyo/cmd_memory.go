package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ukiyo/internal/logging"
	"ukiyo/internal/store"
)

func (a *app) memoryCmd() *cobra.Command {
	var userName string
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage a user's long-term memories",
	}
	cmd.PersistentFlags().StringVarP(&userName, "user", "u", "", "User name (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	var (
		title    string
		priority int
	)
	add := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := st.GetUserByName(cmd.Context(), userName)
			if err != nil {
				return err
			}
			content := strings.Join(args, " ")
			if title == "" {
				title = logging.Truncate(content, 30)
			}
			m, err := st.CreateMemory(cmd.Context(), u.ID, store.MemoryInput{Title: title, Content: content, Priority: priority})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "Memory title (defaults to the start of the content)")
	add.Flags().IntVar(&priority, "priority", 0, fmt.Sprintf("Priority %d..%d; higher comes first", store.MinPriority, store.MaxPriority))

	list := &cobra.Command{
		Use:   "list",
		Short: "List memories by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := st.GetUserByName(cmd.Context(), userName)
			if err != nil {
				return err
			}
			ms, err := st.ListMemories(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tTITLE\tCONTENT")
			for _, m := range ms {
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.Priority, m.Title, logging.Truncate(m.Content, 60))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
