package quotes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"

	"navkeeper/internal/models"
)

// The gold sources are HTML pages, not APIs; prices are pulled out with
// regexes and any drift in the page layout degrades to the synthesizer.
var (
	goldPricePattern = regexp.MustCompile(`积存金\s+([\d.]+)`)
	goldTimePattern  = regexp.MustCompile(`更新时间:(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`)

	goldAltPricePattern  = regexp.MustCompile(`(?s)黄金9999.*?最新价.*?([\d.]+)`)
	goldAltChangePattern = regexp.MustCompile(`(?s)黄金9999.*?涨跌幅.*?([\d.-]+)%`)
)

// fetchGoldPrimary scrapes the accumulation-gold quote page of the primary
// banking source. The page does not carry a change figure, so change is
// reported as zero.
func (s *Service) fetchGoldPrimary(ctx context.Context) (models.GoldQuote, error) {
	body, err := s.get(ctx, s.goldPrimaryURL, nil)
	if err != nil {
		return models.GoldQuote{}, err
	}

	priceMatch := goldPricePattern.FindSubmatch(body)
	timeMatch := goldTimePattern.FindSubmatch(body)
	if priceMatch == nil || timeMatch == nil {
		return models.GoldQuote{}, fmt.Errorf("gold price not found in primary page")
	}
	price, err := parsePrice(string(priceMatch[1]))
	if err != nil {
		return models.GoldQuote{}, err
	}

	return models.GoldQuote{
		Price:  price.Round(2),
		Change: decimal.Zero,
		Time:   string(timeMatch[1]),
		Name:   goldName + " (accumulation)",
		Code:   GoldCode,
		Source: "ICBC (Shanghai Gold Exchange data)",
	}, nil
}

// fetchGoldFallback scrapes the AU9999 quote page of the secondary source.
func (s *Service) fetchGoldFallback(ctx context.Context) (models.GoldQuote, error) {
	body, err := s.get(ctx, s.goldFallbackURL, nil)
	if err != nil {
		return models.GoldQuote{}, err
	}

	priceMatch := goldAltPricePattern.FindSubmatch(body)
	changeMatch := goldAltChangePattern.FindSubmatch(body)
	if priceMatch == nil || changeMatch == nil {
		return models.GoldQuote{}, fmt.Errorf("gold price not found in fallback page")
	}
	price, err := parsePrice(string(priceMatch[1]))
	if err != nil {
		return models.GoldQuote{}, err
	}
	change, err := parsePrice(string(changeMatch[1]))
	if err != nil {
		return models.GoldQuote{}, err
	}

	return models.GoldQuote{
		Price:  price.Round(2),
		Change: change.Round(2),
		Time:   s.now().Format("2006-01-02 15:04:05"),
		Name:   goldName + " (AU9999)",
		Code:   GoldCode,
		Source: "Eastmoney (Shanghai Gold Exchange data)",
	}, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return decimal.NewFromFloat(f), nil
}
