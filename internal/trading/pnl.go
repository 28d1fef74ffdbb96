package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"delta-strangler/internal/models"
	"delta-strangler/pkg/utils"
)

// PnL is the realized result of one strangle.
type PnL struct {
	USD     float64
	INR     float64
	Percent float64
}

// ComputePnL returns the short-premium P&L for a strangle sold at entryCombined
// and bought back at exitCombined. Percent is relative to premium collected.
func ComputePnL(entryCombined, exitCombined, sizeUnits, usdINR float64) PnL {
	entry := decimal.NewFromFloat(entryCombined)
	size := decimal.NewFromFloat(sizeUnits)

	usd := entry.Sub(decimal.NewFromFloat(exitCombined)).Mul(size)
	inr := usd.Mul(decimal.NewFromFloat(usdINR))

	pnl := PnL{
		USD: usd.Round(4).InexactFloat64(),
		INR: inr.Round(2).InexactFloat64(),
	}
	if collected := entry.Mul(size); !collected.IsZero() {
		pnl.Percent = usd.Div(collected).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	return pnl
}

// TradeDuration formats the time between two wall-clock readings.
func TradeDuration(entry, exit time.Time) string {
	return utils.FormatHoldDuration(exit.Sub(entry))
}

// BuildTradeRecord assembles the ledger row for a completed strangle.
func BuildTradeRecord(snap *models.EntrySnapshot, d *models.ExitDecision, sizeUnits float64, loc *time.Location) *models.TradeRecord {
	pnl := ComputePnL(snap.EntryCombinedPremium, d.ExitCombinedPremium, sizeUnits, snap.USDToINRRate)

	rec := &models.TradeRecord{
		Date:          snap.Date,
		Day:           snap.Day,
		EntryTime:     snap.EntryTime,
		Mode:          snap.Mode,
		SpotPrice:     snap.SpotPrice,
		ATMStrike:     snap.ATMStrike,
		CallStrike:    snap.CallStrike,
		PutStrike:     snap.PutStrike,
		CEDistance:    snap.CEDistance,
		PEDistance:    snap.PEDistance,
		EntryCall:     snap.EntryCallPremium,
		EntryPut:      snap.EntryPutPremium,
		EntryCombined: snap.EntryCombinedPremium,
		ExitCall:      d.ExitCallPremium,
		ExitPut:       d.ExitPutPremium,
		ExitCombined:  d.ExitCombinedPremium,
		PnLUSD:        pnl.USD,
		PnLINR:        pnl.INR,
		PnLPercent:    pnl.Percent,
		ExitReason:    d.Reason,
		Trigger:       d.Trigger,
		Breach:        d.Breach,
		DataSource:    d.DataSource,
		ManualReview:  d.RequiresManualReview,
	}

	if !d.ExitTime.IsZero() {
		exitAt := d.ExitTime.In(loc)
		rec.ExitTime = exitAt.Format(models.ClockLayout)
		if entryAt, err := snap.EntryAt(loc); err == nil {
			rec.Duration = TradeDuration(entryAt, exitAt)
		}
	}
	return rec
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
