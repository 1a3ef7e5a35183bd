package influx

import "time"

// SetRetryDelayForTest overrides the reconnect delay so retry behaviour can
// be observed without waiting the production interval.
func (g *Gateway) SetRetryDelayForTest(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retryDelay = d
}
