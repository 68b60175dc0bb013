package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleSeq(closes []float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Epoch: int64(i), Open: c, High: c + 0.1, Low: c - 0.1, Close: c}
	}
	return out
}

func TestEMASeedsWithSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	series := EMASeries(values, 3)
	require.Len(t, series, 5)
	assert.InDelta(t, SMA(values[:3], 3), series[2], 1e-9)
	assert.Zero(t, series[0])
	assert.Zero(t, series[1])
}

func TestRSIInsufficientDataReturnsNeutral(t *testing.T) {
	assert.Equal(t, 50.0, RSI([]float64{1, 2}, 14))
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	assert.Equal(t, 100.0, RSI(values, 14))
}

func TestCandleValidInvariant(t *testing.T) {
	good := Candle{Open: 1, High: 2, Low: 0.5, Close: 1.5}
	assert.True(t, good.Valid())
	bad := Candle{Open: 1, High: 0.9, Low: 0.5, Close: 1.5}
	assert.False(t, bad.Valid())
}

func TestClassifyPatternMarubozuPriority(t *testing.T) {
	candles := []Candle{
		{Open: 10, High: 10.01, Low: 9.99, Close: 10},
		{Open: 10, High: 11, Low: 10, Close: 10.99},
	}
	assert.Equal(t, PatternMarubozu, ClassifyPattern(candles))
}

func TestClassifyPatternDoji(t *testing.T) {
	candles := []Candle{
		{Open: 10, High: 11, Low: 9, Close: 10},
		{Open: 10, High: 11, Low: 9, Close: 10.05},
	}
	assert.Equal(t, PatternDoji, ClassifyPattern(candles))
}

func TestFVGBullish(t *testing.T) {
	candles := candleSeq([]float64{10, 10.05, 12})
	candles[0].High = 10.1
	candles[2].Low = 11.9
	assert.Equal(t, 1, FVG(candles))
}

func TestFractalRequiresWindow(t *testing.T) {
	candles := candleSeq([]float64{1, 2, 3})
	highs, lows := Fractal(candles, 2)
	assert.Nil(t, highs)
	assert.Nil(t, lows)
}

func TestMACDDivergenceBullish(t *testing.T) {
	closes := make([]float64, 25)
	macd := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 - float64(i)*0.1
		macd[i] = -float64(i) * 0.01
	}
	closes[24] = closes[23] - 5 // new low in price
	macd[24] = 1.0              // but MACD makes a higher value than the prior window's max
	got := MACDDivergence(closes, macd, 20)
	assert.Equal(t, 1, got)
}

func TestStructuralRRCapsOnZeroRisk(t *testing.T) {
	rr := StructuralRR(100, []float64{101, 102, 99}, true)
	assert.Greater(t, rr, 0.0)
	capped := StructuralRR(100, []float64{100, 100, 100}, true)
	assert.Equal(t, 10.0, capped)
}

func TestEchoForecastShape(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%10)
	}
	forecast, corr := EchoForecast(closes, 10, 20)
	require.Len(t, forecast, 10)
	assert.GreaterOrEqual(t, corr, -1.0)
	assert.LessOrEqual(t, corr, 1.0)
}
