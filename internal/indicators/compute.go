// Package indicators computes technical indicators over close-price series.
//
// All functions take prices ordered oldest first and return nil when the
// series is too short for the requested period. Arithmetic is float64: the
// values feed scoring, not order placement, so representation noise in the
// last digits is acceptable.
package indicators

import "math"

// SMA returns the simple moving average of the last period prices.
func SMA(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	v := sum / float64(period)
	return &v
}

// EMA returns the exponential moving average with the standard 2/(n+1)
// smoothing, seeded from the first price in the series.
func EMA(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	v := emaSeries(prices, period)
	last := v[len(v)-1]
	return &last
}

// emaSeries computes the EMA at every index from period-1 onward. The
// returned slice is aligned to prices[period-1:].
func emaSeries(prices []float64, period int) []float64 {
	k := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:period] {
		ema = p*k + ema*(1-k)
	}
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)
	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// RSI returns the relative strength index using Wilder's smoothing. A
// series with no losses reads 100, one with no gains reads 0.
func RSI(prices []float64, period int) *float64 {
	if period <= 0 || len(prices) < period+1 {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	return &v
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD returns the 12/26 EMA difference with a 9-period signal line.
func MACD(prices []float64, fast, slow, signal int) *MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 {
		return nil
	}
	if len(prices) < slow+signal-1 {
		return nil
	}

	fastSeries := emaSeries(prices, fast)
	slowSeries := emaSeries(prices, slow)

	// Both series end at the last price; align on the tail.
	n := len(slowSeries)
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fastSeries[len(fastSeries)-n+i] - slowSeries[i]
	}

	signalSeries := emaSeries(macdLine, signal)
	res := MACDResult{
		MACD:   macdLine[n-1],
		Signal: signalSeries[len(signalSeries)-1],
	}
	res.Histogram = res.MACD - res.Signal
	return &res
}

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger returns period-SMA bands at stdDevs standard deviations,
// using the population deviation over the window.
func Bollinger(prices []float64, period int, stdDevs float64) *Bands {
	mid := SMA(prices, period)
	if mid == nil {
		return nil
	}

	window := prices[len(prices)-period:]
	variance := 0.0
	for _, p := range window {
		d := p - *mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return &Bands{
		Upper:  *mid + stdDevs*sd,
		Middle: *mid,
		Lower:  *mid - stdDevs*sd,
	}
}

// Snapshot bundles the standard indicator set used by the analysis scorer.
// Pointers are nil where the series was too short.
type Snapshot struct {
	Price     float64
	SMA20     *float64
	SMA50     *float64
	EMA12     *float64
	EMA26     *float64
	RSI14     *float64
	MACD      *MACDResult
	Bollinger *Bands
}

// Compute evaluates the standard indicator set over a close-price series.
func Compute(prices []float64) Snapshot {
	snap := Snapshot{
		SMA20:     SMA(prices, 20),
		SMA50:     SMA(prices, 50),
		EMA12:     EMA(prices, 12),
		EMA26:     EMA(prices, 26),
		RSI14:     RSI(prices, 14),
		MACD:      MACD(prices, 12, 26, 9),
		Bollinger: Bollinger(prices, 20, 2),
	}
	if len(prices) > 0 {
		snap.Price = prices[len(prices)-1]
	}
	return snap
}
