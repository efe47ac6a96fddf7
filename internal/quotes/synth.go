package quotes

import (
	"context"
	"errors"
	"math/rand"

	"github.com/shopspring/decimal"

	"navkeeper/internal/models"
)

// NavStore is the slice of persistence the synthesizer needs: the last
// persisted value per code (the walk's memory) and an atomic per-day upsert.
type NavStore interface {
	GetLastNav(ctx context.Context, code string) (decimal.Decimal, error)
	UpsertNav(ctx context.Context, code, date string, nav, changeRate decimal.Decimal) error
	ListNavCodes(ctx context.Context) ([]string, error)
}

// RandSource supplies the uniform draws behind every synthetic price, so a
// fixed-seed source makes synthesis reproducible in tests.
type RandSource interface {
	Float64() float64
}

func defaultRand() RandSource {
	return rand.New(rand.NewSource(rand.Int63()))
}

const (
	// GoldCode keys the spot-gold walk in nav_history.
	GoldCode = "AU9999"

	// goldBaseline is the seed for the gold walk, matching the Shanghai
	// Gold Exchange price level in CNY per gram.
	goldBaseline = 1125.0

	// fundSeedBase/fundSeedSpread bound the seed for a never-seen fund:
	// uniform in [1.0, 1.5).
	fundSeedBase   = 1.0
	fundSeedSpread = 0.5

	// walkSpread is the full width, in percent, of one walk step: each step
	// moves the price by uniform(-2%, +2%).
	walkSpread = 4.0
)

// stepFund advances the random walk for a fund code: one bounded step from
// the last persisted NAV, or a fresh seed when the code has no history. The
// new value is persisted so the next call continues the walk — including
// repeated calls within the same day, which overwrite today's record and
// keep the intraday line moving.
func (s *Service) stepFund(ctx context.Context, code string) (nav, changeRate decimal.Decimal) {
	last, err := s.store.GetLastNav(ctx, code)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.log.Warnf("nav history read failed for %s: %v", code, err)
	}

	var navF, change float64
	if err == nil {
		lastF, _ := last.Float64()
		change = (s.rng.Float64() - 0.5) * walkSpread
		navF = lastF * (1 + change/100)
	} else {
		navF = fundSeedBase + s.rng.Float64()*fundSeedSpread
	}

	nav = decimal.NewFromFloat(navF).Round(4)
	changeRate = decimal.NewFromFloat(change).Round(2)
	s.persistNav(ctx, code, nav, changeRate)
	return nav, changeRate
}

// stepGold advances the gold walk. Unlike funds, the seed is a fixed
// baseline rather than a random draw, so the first synthetic quote is
// exactly the documented price level.
func (s *Service) stepGold(ctx context.Context) (price, changeRate decimal.Decimal) {
	last, err := s.store.GetLastNav(ctx, GoldCode)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.log.Warnf("nav history read failed for %s: %v", GoldCode, err)
	}

	if err != nil {
		price = decimal.NewFromFloat(goldBaseline)
		changeRate = decimal.Zero
	} else {
		lastF, _ := last.Float64()
		change := (s.rng.Float64() - 0.5) * walkSpread
		price = decimal.NewFromFloat(lastF * (1 + change/100)).Round(2)
		changeRate = decimal.NewFromFloat(change).Round(2)
	}

	s.persistNav(ctx, GoldCode, price, changeRate)
	return price, changeRate
}

func (s *Service) persistNav(ctx context.Context, code string, nav, changeRate decimal.Decimal) {
	if err := s.store.UpsertNav(ctx, code, models.DateKey(s.now()), nav, changeRate); err != nil {
		s.log.Warnf("nav history upsert failed for %s: %v", code, err)
	}
}
