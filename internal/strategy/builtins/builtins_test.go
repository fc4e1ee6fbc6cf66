package builtins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kepler/internal/domain"
	"kepler/internal/feature"
)

func portfolio(positions map[string]float64) domain.PortfolioState {
	if positions == nil {
		positions = map[string]float64{}
	}
	return domain.PortfolioState{Cash: 100_000, Positions: positions}
}

func vec(symbol string, smaShort, smaLong, momentum float64) feature.Vector {
	return feature.Vector{
		Symbol:    symbol,
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Close:     100,
		SMAShort:  smaShort,
		SMALong:   smaLong,
		Momentum:  momentum,
	}
}

func TestSMACrossEntryAndExit(t *testing.T) {
	s, err := NewSMACross(100)
	require.NoError(t, err)
	require.Equal(t, "sma-cross", s.Name())

	// Short above long while flat: buy to target.
	intents := s.OnTick(vec("AAPL", 105, 100, 0), portfolio(nil))
	require.Len(t, intents, 1)
	require.InDelta(t, 100, intents[0].Size, 1e-9)
	require.Equal(t, "AAPL", intents[0].Symbol)

	// Already at target: no order.
	intents = s.OnTick(vec("AAPL", 105, 100, 0), portfolio(map[string]float64{"AAPL": 100}))
	require.Empty(t, intents)

	// Cross back down while long: sell to flat.
	intents = s.OnTick(vec("AAPL", 95, 100, 0), portfolio(map[string]float64{"AAPL": 100}))
	require.Len(t, intents, 1)
	require.InDelta(t, -100, intents[0].Size, 1e-9)

	// Flat and below: nothing to do.
	intents = s.OnTick(vec("AAPL", 95, 100, 0), portfolio(nil))
	require.Empty(t, intents)
}

func TestNewSMACrossRejectsBadSize(t *testing.T) {
	_, err := NewSMACross(0)
	require.Error(t, err)
	_, err = NewSMACross(-10)
	require.Error(t, err)
}

func TestMomentumHysteresis(t *testing.T) {
	m, err := NewMomentum(0.02, 0.005, 100)
	require.NoError(t, err)
	require.Equal(t, "momentum", m.Name())

	// Below entry while flat: stay flat.
	require.Empty(t, m.OnTick(vec("AAPL", 0, 0, 0.01), portfolio(nil)))

	// Above entry: buy to target.
	intents := m.OnTick(vec("AAPL", 0, 0, 0.03), portfolio(nil))
	require.Len(t, intents, 1)
	require.InDelta(t, 100, intents[0].Size, 1e-9)

	// Inside the band while long: hold.
	held := portfolio(map[string]float64{"AAPL": 100})
	require.Empty(t, m.OnTick(vec("AAPL", 0, 0, 0.01), held))

	// Below exit while long: close.
	intents = m.OnTick(vec("AAPL", 0, 0, 0.001), portfolio(map[string]float64{"AAPL": 100}))
	require.Len(t, intents, 1)
	require.InDelta(t, -100, intents[0].Size, 1e-9)
}

func TestNewMomentumValidation(t *testing.T) {
	_, err := NewMomentum(0.01, 0.02, 100) // exit above entry
	require.Error(t, err)
	_, err = NewMomentum(0.02, 0.01, 0)
	require.Error(t, err)
}

func TestDefaultsRegistry(t *testing.T) {
	reg := Defaults()
	require.Equal(t, []string{"momentum", "sma-cross"}, reg.List())

	s, err := reg.New("sma-cross", map[string]float64{"size": 250})
	require.NoError(t, err)
	require.Equal(t, "sma-cross", s.Name())

	m, err := reg.New("momentum", nil)
	require.NoError(t, err)
	require.Equal(t, "momentum", m.Name())

	_, err = reg.New("nope", nil)
	require.Error(t, err)

	// Out-of-domain parameters fail construction.
	_, err = reg.New("sma-cross", map[string]float64{"size": -5})
	require.Error(t, err)
}
