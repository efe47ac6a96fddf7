package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// UnavailableEstimate is the sentinel carried in a quote's Estimate field
// when neither the live feed nor the synthesizer produced a value.
const UnavailableEstimate = "-"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUpstreamUnavailable = errors.New("upstream quote source unavailable")
)

type User struct {
	ID           string `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
}

// Position is one user's holding in one fund: the net invested amount and
// the share count accumulated through buys and sells.
type Position struct {
	UserID string          `db:"user_id" json:"-"`
	Code   string          `db:"code" json:"code"`
	Name   string          `db:"name" json:"name"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
	Shares decimal.Decimal `db:"shares" json:"shares"`
}

// Classification is the prefix-derived fund type and sector labels.
type Classification struct {
	Type   string `json:"type"`
	Sector string `json:"sector"`
}

// Quote is an ephemeral NAV estimate. Estimate and EstimateChange are
// strings because the live feed reports them as strings and because the
// estimate may be the unavailable sentinel.
type Quote struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Estimate       string `json:"estimate"`
	EstimateChange string `json:"estimate_change"`
	Time           string `json:"time"`
	Type           string `json:"type"`
	Sector         string `json:"sector"`
}

// Nav returns the estimate as a decimal, or ok=false for the sentinel or
// an unparseable value.
func (q Quote) Nav() (decimal.Decimal, bool) {
	if q.Estimate == UnavailableEstimate {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(q.Estimate)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// GoldQuote is a spot-gold reading with its provenance.
type GoldQuote struct {
	Price  decimal.Decimal `json:"price"`
	Change decimal.Decimal `json:"change"`
	Time   string          `json:"time"`
	Name   string          `json:"name"`
	Code   string          `json:"code"`
	Source string          `json:"source"`
}

// NavRecord is one persisted day of the NAV walk for a code.
type NavRecord struct {
	Code       string          `db:"code"`
	Date       string          `db:"date"`
	Nav        decimal.Decimal `db:"nav"`
	ChangeRate decimal.Decimal `db:"change_rate"`
}

// Bar is one day of an OHLC price series.
type Bar struct {
	Date  string          `json:"date"`
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Price decimal.Decimal `json:"price"`
}

// MinutePoint is one intraday sample of the minute series.
type MinutePoint struct {
	Time  string          `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// DateKey formats a timestamp at the day granularity used by nav_history.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
