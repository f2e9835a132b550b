package eligibility

import (
	"time"

	"savemore/contexts/community-experience/view-settlement/ports"
)

type realTicker struct {
	ticker *time.Ticker
}

func NewRealTicker(interval time.Duration) ports.Ticker {
	return realTicker{ticker: time.NewTicker(interval)}
}

func (r realTicker) C() <-chan time.Time { return r.ticker.C }

func (r realTicker) Stop() { r.ticker.Stop() }
