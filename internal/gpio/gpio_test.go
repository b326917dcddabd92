package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresLine(t *testing.T) {
	_, err := Open(LineConfig{Backend: BackendSim})
	require.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(LineConfig{Backend: "pigpio", Line: "17"})
	require.ErrorContains(t, err, "unknown backend")
}

func TestOpen_Sim(t *testing.T) {
	out, err := Open(LineConfig{Backend: "SIM", Line: "led"})
	require.NoError(t, err)
	sim, ok := out.(*Sim)
	require.True(t, ok)
	require.Equal(t, "led", sim.Name())
}

func TestOpen_DispatchesAndDefaultsConsumer(t *testing.T) {
	var got LineConfig
	old := openGPIOCDevFn
	openGPIOCDevFn = func(cfg LineConfig) (Output, error) {
		got = cfg
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { openGPIOCDevFn = old })

	_, err := Open(LineConfig{Chip: "gpiochip0", Line: "16"})
	require.EqualError(t, err, "boom")
	require.Equal(t, "softpwm", got.Consumer)
	require.Equal(t, "16", got.Line)
}

func TestSim_RecordsTransitionsOnly(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewSim("x", func() time.Time { return now })

	require.NoError(t, s.SetLow())
	now = now.Add(time.Millisecond)
	require.NoError(t, s.SetLow())
	now = now.Add(time.Millisecond)
	require.NoError(t, s.SetHigh())
	now = now.Add(time.Millisecond)
	require.NoError(t, s.SetHigh())

	tr := s.Transitions()
	require.Len(t, tr, 2)
	require.False(t, tr[0].High)
	require.True(t, tr[1].High)
	require.Equal(t, 4, s.Sets())
	require.True(t, s.High())
	require.True(t, s.EverHigh())
}

func TestSim_HighTime(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	s := NewSim("x", func() time.Time { return now })

	// 3 cycles of 10ms at 30% duty.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SetHigh())
		now = now.Add(3 * time.Millisecond)
		require.NoError(t, s.SetLow())
		now = now.Add(7 * time.Millisecond)
	}
	require.Equal(t, 9*time.Millisecond, s.HighTime(base, now))
	// Window starting mid-pulse.
	require.Equal(t, 2*time.Millisecond+6*time.Millisecond, s.HighTime(base.Add(time.Millisecond), now))
}

func TestSim_ClosedRejectsWrites(t *testing.T) {
	s := NewSim("x", nil)
	require.NoError(t, s.Close())
	require.True(t, s.Closed())
	require.Error(t, s.SetHigh())
}

func TestLineConfig_Key(t *testing.T) {
	require.Equal(t,
		LineConfig{Chip: "gpiochip0", Line: "17"}.Key(),
		LineConfig{Backend: "GPIOCDev", Chip: "gpiochip0", Line: " 17"}.Key())
	require.NotEqual(t,
		LineConfig{Backend: BackendGPIOCDev, Chip: "gpiochip0", Line: "17"}.Key(),
		LineConfig{Backend: BackendGPIOCDev, Chip: "gpiochip1", Line: "17"}.Key())
	// periph pins are global; the chip does not distinguish them.
	require.Equal(t,
		LineConfig{Backend: BackendPeriph, Chip: "a", Line: "GPIO17"}.Key(),
		LineConfig{Backend: BackendPeriph, Line: "GPIO17"}.Key())
	require.NotEqual(t,
		LineConfig{Backend: BackendPeriph, Line: "GPIO17"}.Key(),
		LineConfig{Backend: BackendSim, Line: "GPIO17"}.Key())
}
