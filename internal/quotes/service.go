// Package quotes produces fund NAV estimates and spot-gold readings. Each
// read tries the live upstream once inside a bounded timeout; any failure
// falls back to a persisted random walk, so callers always get a price and
// never see an upstream error.
package quotes

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"navkeeper/internal/models"
)

const (
	fetchTimeout = 5 * time.Second

	fundEstimateURL = "http://fundgz.1234567.com.cn/js"
	fundHistoryURL  = "http://api.fund.eastmoney.com/f10/lsjz"
	goldPrimaryURL  = "https://mybank.icbc.com.cn/icbc/newperbank/perbank3/gold/goldaccrual_query_out.jsp"
	goldFallbackURL = "https://quote.eastmoney.com/q/118.AU9999.html"

	unknownFundName = "Unknown Fund"
	goldName        = "Shanghai Gold"
)

type Service struct {
	store  NavStore
	log    *logrus.Logger
	client *http.Client
	rng    RandSource
	now    func() time.Time

	fundEstimateURL string
	fundHistoryURL  string
	goldPrimaryURL  string
	goldFallbackURL string
}

func New(store NavStore, log *logrus.Logger) *Service {
	return &Service{
		store:           store,
		log:             log,
		client:          &http.Client{Timeout: fetchTimeout},
		rng:             defaultRand(),
		now:             time.Now,
		fundEstimateURL: fundEstimateURL,
		fundHistoryURL:  fundHistoryURL,
		goldPrimaryURL:  goldPrimaryURL,
		goldFallbackURL: goldFallbackURL,
	}
}

// Quote returns a NAV estimate for a fund code. The live feed is tried
// once; on any failure the walk takes over with a synthetic estimate.
func (s *Service) Quote(ctx context.Context, code string) models.Quote {
	q, err := s.fetchFundEstimate(ctx, code)
	if err == nil {
		return q
	}
	s.log.Warnf("live estimate for %s failed, synthesizing: %v", code, err)

	nav, changeRate := s.stepFund(ctx, code)
	cls := Classify(code)
	return models.Quote{
		Code:           code,
		Name:           unknownFundName,
		Estimate:       nav.String(),
		EstimateChange: changeRate.String(),
		Time:           s.now().Format("2006-01-02 15:04:05.000"),
		Type:           cls.Type,
		Sector:         cls.Sector,
	}
}

// Gold returns a spot-gold reading: primary scrape, then secondary scrape,
// then the persisted walk.
func (s *Service) Gold(ctx context.Context) models.GoldQuote {
	if q, err := s.fetchGoldPrimary(ctx); err == nil {
		return q
	} else {
		s.log.Warnf("primary gold source failed: %v", err)
	}
	if q, err := s.fetchGoldFallback(ctx); err == nil {
		return q
	} else {
		s.log.Warnf("fallback gold source failed: %v", err)
	}

	price, changeRate := s.stepGold(ctx)
	return models.GoldQuote{
		Price:  price,
		Change: changeRate,
		Time:   s.now().Format("2006-01-02 15:04:05"),
		Name:   goldName,
		Code:   GoldCode,
		Source: "synthetic (Shanghai Gold Exchange price level)",
	}
}

// Start launches the background refresher: every interval it advances the
// walk for each code already present in history, keeping estimates moving
// between requests. It stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info("nav refresher stopping")
				return
			case <-ticker.C:
				codes, err := s.store.ListNavCodes(ctx)
				if err != nil {
					s.log.Warnf("failed to list nav codes: %v", err)
					continue
				}
				for _, code := range codes {
					if code == GoldCode {
						s.stepGold(ctx)
					} else {
						s.stepFund(ctx, code)
					}
				}
			}
		}
	}()
}
