package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/models"
)

func sampleSnapshot() *models.EntrySnapshot {
	return &models.EntrySnapshot{
		Date:                 "2026-10-19",
		Day:                  "Monday",
		EntryTime:            "03:30",
		Mode:                 models.ModeDryRun,
		SpotPrice:            65123.45,
		ATMStrike:            65000,
		USDToINRRate:         83.91,
		CallSymbol:           "C-BTC-68000-191026",
		PutSymbol:            "P-BTC-62000-191026",
		CallProductID:        101,
		PutProductID:         102,
		CallStrike:           68000,
		PutStrike:            62000,
		CEDistance:           15,
		PEDistance:           14,
		EntryCallPremium:     12.3,
		EntryPutPremium:      11.9,
		EntryCombinedPremium: 24.2,
	}
}

// Property: a saved snapshot loads back with every field intact.
func TestProperty_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSnapshotStore(filepath.Join(dir, "active_trade.json"))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("save then load reproduces the snapshot", prop.ForAll(
		func(day, minute int, spot, rate, callBid, putBid float64, ceDist, peDist, callID int, symbol string) bool {
			entered := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day).Add(time.Duration(minute) * time.Minute)
			want := &models.EntrySnapshot{
				Date:                 entered.Format(models.DateLayout),
				Day:                  entered.Weekday().String(),
				EntryTime:            entered.Format(models.ClockLayout),
				Mode:                 models.ModeLive,
				SpotPrice:            spot,
				ATMStrike:            float64(int(spot/200) * 200),
				USDToINRRate:         rate,
				CallSymbol:           "C-" + symbol,
				PutSymbol:            "P-" + symbol,
				CallProductID:        callID,
				PutProductID:         callID + 1,
				CallStrike:           spot + float64(ceDist)*200,
				PutStrike:            spot - float64(peDist)*200,
				CEDistance:           ceDist,
				PEDistance:           peDist,
				EntryCallPremium:     callBid,
				EntryPutPremium:      putBid,
				EntryCombinedPremium: callBid + putBid,
			}

			if err := s.Save(want); err != nil {
				t.Logf("Save failed: %v", err)
				return false
			}
			got, err := s.Load()
			if err != nil {
				t.Logf("Load failed: %v", err)
				return false
			}
			return *got == *want
		},
		gen.IntRange(0, 3650),
		gen.IntRange(0, 24*60-1),
		gen.Float64Range(10000, 200000),
		gen.Float64Range(60, 100),
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
		gen.IntRange(0, 30),
		gen.IntRange(0, 30),
		gen.IntRange(1, 1000000),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestFileSnapshotStore_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "active_trade.json")
	s := NewFileSnapshotStore(path)

	if _, err := s.Load(); !apperrors.Is(err, apperrors.ErrNoSnapshot) {
		t.Fatalf("Load() on empty store error = %v, want ErrNoSnapshot", err)
	}

	snap := sampleSnapshot()
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *snap {
		t.Errorf("Load() = %+v, want %+v", got, snap)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("snapshot file still present after Delete()")
	}
	if err := s.Delete(); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestFileSnapshotStore_RejectsInvalid(t *testing.T) {
	s := NewFileSnapshotStore(filepath.Join(t.TempDir(), "active_trade.json"))

	bad := sampleSnapshot()
	bad.CallSymbol = ""
	if err := s.Save(bad); err == nil {
		t.Error("Save() should reject a snapshot without symbols")
	}

	if err := os.WriteFile(s.Path(), []byte(`{"date":"19-10-2026"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("Load() should reject a snapshot with an ambiguous date")
	}
}
