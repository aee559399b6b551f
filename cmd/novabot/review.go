package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/novatra/novabot/internal/adapters/linear"
	"github.com/novatra/novabot/internal/bot"
	"github.com/novatra/novabot/internal/logging"
	"github.com/novatra/novabot/internal/review"
	"github.com/novatra/novabot/internal/store"
	"github.com/novatra/novabot/internal/tui"
)

func newReviewCmd() *cobra.Command {
	var (
		batchID  int64
		userName string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a stored batch in the terminal",
		Long: `Open an interactive review of one extraction batch. Approved tasks
are uploaded to Linear with u, exactly as from the Discord review.

Examples:
  novabot review --batch 12
  novabot review --batch 12 --as "Alice"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchID <= 0 {
				return errors.New("--batch is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logging.Suppress()

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			app := bot.New(st, nil, linear.NewExporter(cfg.Linear), nil, nil, bot.Options{PageSize: cfg.Review.PageSize})
			s, err := app.RenderReview(cmd.Context(), batchID, review.Meta{UserName: userName})
			if err != nil {
				return err
			}

			p := tea.NewProgram(tui.New(cmd.Context(), s), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("review: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&batchID, "batch", 0, "batch id to review")
	cmd.Flags().StringVar(&userName, "as", "", "display name credited on uploaded issues")
	return cmd
}
