package models

import (
	"errors"
	"time"
)

// PricePoint is one daily candle of the BTC/USDT series.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks if the price point is usable for analysis
func (p *PricePoint) Validate() error {
	if p.Date.IsZero() {
		return errors.New("price point date is zero")
	}
	if p.Close <= 0 {
		return errors.New("price point close is not positive")
	}
	if p.High < p.Low {
		return errors.New("price point high is below low")
	}
	if p.Volume < 0 {
		return errors.New("price point volume is negative")
	}
	return nil
}
