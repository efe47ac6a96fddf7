package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"navkeeper/internal/models"
)

const historyDays = 30

// fundHistoryResponse is the shape of the live per-fund history API.
type fundHistoryResponse struct {
	Data struct {
		LSJZList []struct {
			Date string `json:"FSRQ"`
			Nav  string `json:"DWJZ"`
		} `json:"LSJZList"`
	} `json:"Data"`
}

// FundHistory returns ~31 daily bars for a fund: live history when the
// upstream API yields any, otherwise a synthetic series derived from the
// current estimate. The fund name from the current quote is returned with
// the bars.
func (s *Service) FundHistory(ctx context.Context, code string) (string, []models.Bar) {
	quote := s.Quote(ctx, code)

	if bars, err := s.fetchFundHistory(ctx, code); err == nil && len(bars) > 0 {
		return quote.Name, bars
	} else if err != nil {
		s.log.Warnf("live history for %s failed, synthesizing: %v", code, err)
	}

	current := 1.0
	if nav, ok := quote.Nav(); ok {
		current, _ = nav.Float64()
	}

	bars := make([]models.Bar, 0, historyDays+1)
	today := s.now()
	for i := historyDays; i > 0; i-- {
		date := today.AddDate(0, 0, -i)
		// Daily values jitter ±1% around the current estimate, floored so
		// the series never goes non-positive.
		value := current * (1 + (s.rng.Float64()-0.5)*0.02)
		value = math.Max(0.01, value)
		bars = append(bars, s.bar(models.DateKey(date), value, 4))
	}
	bars = append(bars, s.bar(models.DateKey(today), current, 4))
	return quote.Name, bars
}

func (s *Service) fetchFundHistory(ctx context.Context, code string) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("fundCode", code)
	q.Set("pageIndex", "1")
	q.Set("pageSize", "31")
	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
		"Referer":    fmt.Sprintf("http://fund.eastmoney.com/%s.html", code),
	}
	body, err := s.get(ctx, s.fundHistoryURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}

	var resp fundHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}

	bars := make([]models.Bar, 0, len(resp.Data.LSJZList))
	for _, item := range resp.Data.LSJZList {
		if item.Date == "" || item.Nav == "" {
			continue
		}
		nav, err := decimal.NewFromString(item.Nav)
		if err != nil {
			continue
		}
		navF, _ := nav.Float64()
		bars = append(bars, s.bar(item.Date, navF, 4))
	}
	return bars, nil
}

// GoldHistory returns 30 synthetic daily bars around the current gold price
// plus today's bar at the current price itself.
func (s *Service) GoldHistory(ctx context.Context) []models.Bar {
	current, _ := s.Gold(ctx).Price.Float64()

	bars := make([]models.Bar, 0, historyDays+1)
	today := s.now()
	for i := historyDays; i > 0; i-- {
		date := today.AddDate(0, 0, -i)
		// Daily values jitter ±2% around the current price.
		value := current * (1 + (s.rng.Float64()-0.5)*0.04)
		bars = append(bars, s.bar(models.DateKey(date), value, 2))
	}
	bars = append(bars, s.bar(models.DateKey(today), current, 2))
	return bars
}

// volatilityBand shapes the minute series by time of day, in fractional
// hours: openings are choppy, mid-sessions calm, the close volatile.
type volatilityBand struct {
	from, to      float64
	volatility    float64
	trendStrength float64
}

var minuteBands = []volatilityBand{
	{9, 10, 0.003, 0.0015},
	{10, 11, 0.001, 0.0005},
	{11, 12, 0.0025, 0.001},
	{13, 14, 0.003, 0.0015},
	{14, 15, 0.001, 0.0005},
	{15, 15.5, 0.004, 0.002},
}

// GoldMinute returns per-minute intraday points from 09:00 up to the
// current minute: a trending walk from the gold baseline whose step size
// follows the time-of-day volatility bands. Before 09:00 the series is
// empty.
func (s *Service) GoldMinute(ctx context.Context) []models.MinutePoint {
	base := goldBaseline
	trendDirection := 1.0
	if s.rng.Float64() <= 0.5 {
		trendDirection = -1.0
	}
	trendStrength := 0.001

	now := s.now()
	cursor := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())

	points := []models.MinutePoint{}
	for !cursor.After(now) {
		hour := float64(cursor.Hour()) + float64(cursor.Minute())/60

		volatility := 0.002
		strength := trendStrength
		for _, band := range minuteBands {
			if hour >= band.from && hour < band.to {
				volatility = band.volatility
				strength = band.trendStrength
				break
			}
		}

		trendFactor := 1 + trendDirection*strength
		randomFactor := 1 + (s.rng.Float64()-0.5)*volatility
		price := base * trendFactor * randomFactor

		// 5% chance per step to reverse the trend.
		if s.rng.Float64() < 0.05 {
			trendDirection = -trendDirection
		}
		trendStrength = clamp(trendStrength+(s.rng.Float64()-0.5)*0.0005, 0.0005, 0.002)

		base = price
		points = append(points, models.MinutePoint{
			Time:  cursor.Format("15:04"),
			Price: decimal.NewFromFloat(price).Round(2),
		})
		cursor = cursor.Add(time.Minute)
	}
	return points
}

// bar builds one OHLC bar around a closing value with ±0.5% open jitter and
// up to 1% high/low extension, rounded to the given decimal places.
func (s *Service) bar(date string, value float64, places int32) models.Bar {
	open := value * (1 + (s.rng.Float64()-0.5)*0.01)
	closeP := value
	high := math.Max(open, closeP) * (1 + s.rng.Float64()*0.01)
	low := math.Min(open, closeP) * (1 - s.rng.Float64()*0.01)
	return models.Bar{
		Date:  date,
		Open:  decimal.NewFromFloat(open).Round(places),
		Close: decimal.NewFromFloat(closeP).Round(places),
		High:  decimal.NewFromFloat(high).Round(places),
		Low:   decimal.NewFromFloat(low).Round(places),
		Price: decimal.NewFromFloat(value).Round(places),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
