package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// Chain row markers.
const (
	markerATM        = "ATM"
	markerCESelected = "CE SELECTED"
	markerPESelected = "PE SELECTED"
)

// chainRow is one strike of the displayed option chain.
type chainRow struct {
	Distance int      `json:"distance"`
	Strike   float64  `json:"strike"`
	CallBid  float64  `json:"call_bid"`
	CallAsk  float64  `json:"call_ask"`
	PutBid   float64  `json:"put_bid"`
	PutAsk   float64  `json:"put_ask"`
	Markers  []string `json:"markers,omitempty"`
}

func newChainCmd(app *App) *cobra.Command {
	var width int

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Show the option chain around ATM with the scanner's selection",
		Long: `Fetch the option chain for the target expiry and print the strikes
around ATM. The pair the entry phase would sell is marked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)
			logger := app.Logger
			client := app.deltaClient(logger)

			if width <= 0 {
				width = app.Config.Strategy.ChainDisplayWidth
			}

			now := app.Clock.Now().In(utils.IndiaLocation)
			expiry := utils.TargetExpiry(now, app.Config.ExpiryCutoffTimeOfDay())

			spot, err := client.SpotPrice(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch spot price: %w", err)
			}
			chain, err := client.OptionChain(ctx, app.Config.Strategy.Underlying, expiry)
			if err != nil {
				if errors.Is(err, apperrors.ErrNoOptions) {
					output.Warning("No options listed for %s", expiry.Format(models.DateLayout))
					return nil
				}
				return fmt.Errorf("failed to fetch option chain: %w", err)
			}
			chain.SpotPrice = spot

			ladder := models.NewStrikeLadder(chain)
			if ladder == nil {
				output.Warning("Option chain for %s has no strikes", expiry.Format(models.DateLayout))
				return nil
			}
			scan := app.scanner(logger).SelectStrikes(ladder)
			rows := chainRows(ladder, scan.Pair, width)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"expiry":   expiry.Format(models.DateLayout),
					"spot":     spot,
					"atm":      ladder.ATMStrike(),
					"range":    scan.Range,
					"pair":     scan.Pair,
					"warnings": scan.Warnings,
					"rows":     rows,
				})
			}

			output.Bold("%s options expiring %s", app.Config.Strategy.Underlying, expiry.Format(models.DateLayout))
			output.Printf("Spot %s  ATM %s  (%d strikes)\n\n", utils.FormatUSD(spot), FormatStrike(ladder.ATMStrike()), len(ladder.Strikes))
			renderChain(output, rows)
			output.Println()
			for _, w := range scan.Warnings {
				output.Warning("%s", w)
			}
			if scan.Pair == nil {
				output.Warning("No pair passes the liquidity and spread filters")
				return nil
			}
			p := scan.Pair
			output.Success("Selected (%s): %s + %s = %.2f (imbalance %.2f)",
				scan.Range, p.Call.Symbol, p.Put.Symbol, p.CombinedPremium, p.Imbalance)
			return nil
		},
	}

	cmd.Flags().IntVarP(&width, "width", "w", 0, "strikes to show on each side of ATM")
	return cmd
}

// chainRows returns the strikes within width of ATM, lowest first.
func chainRows(ladder *models.StrikeLadder, pair *models.StrikePair, width int) []chainRow {
	lo := max(ladder.ATMIndex-width, 0)
	hi := min(ladder.ATMIndex+width, len(ladder.Strikes)-1)

	rows := make([]chainRow, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		strike := ladder.Strikes[i]
		row := chainRow{Distance: i - ladder.ATMIndex, Strike: strike}
		if e, ok := ladder.Calls[strike]; ok {
			row.CallBid, row.CallAsk = e.Quote.BestBid, e.Quote.BestAsk
		}
		if e, ok := ladder.Puts[strike]; ok {
			row.PutBid, row.PutAsk = e.Quote.BestBid, e.Quote.BestAsk
		}

		if i == ladder.ATMIndex {
			row.Markers = append(row.Markers, markerATM)
		}
		if pair != nil {
			if strike == pair.Call.StrikePrice {
				row.Markers = append(row.Markers, markerCESelected)
			}
			if strike == pair.Put.StrikePrice {
				row.Markers = append(row.Markers, markerPESelected)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderChain(output *Output, rows []chainRow) {
	table := NewTable(output, "Dist", "Strike", "Call Bid", "Call Ask", "Put Bid", "Put Ask", "").AlignRight(0, 1, 2, 3, 4, 5)
	for _, r := range rows {
		marker := strings.Join(r.Markers, ", ")
		switch {
		case strings.Contains(marker, "SELECTED"):
			marker = output.Green(marker)
		case marker != "":
			marker = output.Cyan(marker)
		}
		table.AddRow(
			FormatDistance(r.Distance),
			FormatStrike(r.Strike),
			FormatPremium(r.CallBid),
			FormatPremium(r.CallAsk),
			FormatPremium(r.PutBid),
			FormatPremium(r.PutAsk),
			marker,
		)
	}
	table.Render()
}
