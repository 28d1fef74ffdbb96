package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"delta-strangler/internal/models"
	"delta-strangler/internal/store"
	"delta-strangler/pkg/utils"
)

func newLedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Trade ledger",
		Long:  "List and summarize completed strangles.",
	}

	var (
		mode   string
		from   string
		to     string
		days   int
		limit  int
		review bool
	)

	filter := func(cmd *cobra.Command) (store.TradeFilter, error) {
		f := store.TradeFilter{Mode: models.TradingMode(mode), StartDate: from, EndDate: to, Limit: limit}
		if mode != "" && f.Mode != models.ModeLive && f.Mode != models.ModeDryRun {
			return f, fmt.Errorf("invalid mode %q (must be dry_run or live)", mode)
		}
		for _, d := range []string{from, to} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(models.DateLayout, d); err != nil {
				return f, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
			}
		}
		if days > 0 && from == "" {
			f.StartDate = app.Clock.Now().In(utils.IndiaLocation).AddDate(0, 0, -days+1).Format(models.DateLayout)
		}
		if cmd.Flags().Changed("review") {
			f.ManualReview = &review
		}
		return f, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded trades, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			f, err := filter(cmd)
			if err != nil {
				return err
			}
			ledger, err := app.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			trades, err := ledger.ListTrades(cmd.Context(), f)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades recorded")
				return nil
			}
			renderTrades(output, trades)
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")

	sum := &cobra.Command{
		Use:   "summary",
		Short: "Summarize recorded trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			f, err := filter(cmd)
			if err != nil {
				return err
			}
			f.Limit = 0
			ledger, err := app.openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			s, err := ledger.Summarize(cmd.Context(), f)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"trades":        s.Trades,
					"wins":          s.Wins,
					"losses":        s.Losses,
					"win_rate":      s.WinRate(),
					"manual_review": s.ManualReview,
					"total_usd":     s.TotalUSD,
					"total_inr":     s.TotalINR,
					"best_inr":      s.BestINR,
					"worst_inr":     s.WorstINR,
				})
			}
			renderSummary(output, s)
			return nil
		},
	}

	for _, c := range []*cobra.Command{list, sum} {
		c.Flags().StringVar(&mode, "mode", "", "filter by mode (dry_run, live)")
		c.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
		c.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
		c.Flags().IntVar(&days, "days", 0, "only the last N days")
		c.Flags().BoolVar(&review, "review", false, "only trades flagged (true) or not flagged (false) for manual review")
	}

	cmd.AddCommand(list, sum)
	return cmd
}

func renderTrades(output *Output, trades []models.TradeRecord) {
	table := NewTable(output, "Date", "Mode", "Strikes", "Entry", "Exit", "Trigger", "Source", "P&L", "Cumulative", "Reason", "").AlignRight(7, 8)
	for _, t := range trades {
		flag := ""
		if t.ManualReview {
			flag = output.Yellow("REVIEW")
		}
		table.AddRow(
			t.Date+" "+t.EntryTime,
			t.Mode.Label(),
			FormatStrike(t.CallStrike)+"/"+FormatStrike(t.PutStrike),
			fmt.Sprintf("%.2f", t.EntryCombined),
			fmt.Sprintf("%.2f @ %s", t.ExitCombined, t.ExitTime),
			output.Trigger(t.Trigger),
			strings.ToLower(string(t.DataSource)),
			output.PnL(t.PnLINR),
			FormatPnL(t.CumulativePnLINR),
			TruncateString(t.ExitReason, 32),
			flag,
		)
	}
	table.Render()
}

func renderSummary(output *Output, s *store.Summary) {
	output.Bold("Ledger summary")
	output.Printf("  Trades:        %d (%d wins, %d losses)\n", s.Trades, s.Wins, s.Losses)
	output.Printf("  Win Rate:      %.1f%%\n", s.WinRate())
	output.Printf("  Total P&L:     %s (%s)\n", output.PnL(s.TotalINR), FormatPnLUSD(s.TotalUSD))
	if s.Trades > 0 {
		output.Printf("  Best / Worst:  %s / %s\n", FormatPnL(s.BestINR), FormatPnL(s.WorstINR))
	}
	if s.ManualReview > 0 {
		output.Warning("  %d trade(s) need manual review", s.ManualReview)
	}
}
