package pwm

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDutyCycle_Range(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		d, err := NewDutyCycle(v)
		require.NoError(t, err)
		got, err := d.Load()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := NewDutyCycle(v)
		require.ErrorIs(t, err, ErrDutyOutOfRange, "v=%v", v)
	}
}

func TestDutyCycle_StoreRejectsOutOfRange(t *testing.T) {
	d, err := NewDutyCycle(0.25)
	require.NoError(t, err)

	require.ErrorIs(t, d.Store(1.5), ErrDutyOutOfRange)
	require.ErrorIs(t, d.Store(math.NaN()), ErrDutyOutOfRange)
	got, err := d.Load()
	require.NoError(t, err)
	require.Equal(t, 0.25, got)

	require.NoError(t, d.Store(0.75))
	got, err = d.Load()
	require.NoError(t, err)
	require.Equal(t, 0.75, got)
}

func TestDutyCycle_Update(t *testing.T) {
	d, err := NewDutyCycle(0.5)
	require.NoError(t, err)

	require.NoError(t, d.Update(func(v float64) float64 { return v / 2 }))
	got, _ := d.Load()
	require.Equal(t, 0.25, got)

	require.ErrorIs(t, d.Update(func(v float64) float64 { return v + 1 }), ErrDutyOutOfRange)
	got, _ = d.Load()
	require.Equal(t, 0.25, got)
}

func TestDutyCycle_PanickingUpdatePoisons(t *testing.T) {
	d, err := NewDutyCycle(0.5)
	require.NoError(t, err)

	err = d.Update(func(float64) float64 { panic("half way") })
	require.ErrorIs(t, err, ErrPoisoned)
	require.Contains(t, err.Error(), "half way")

	_, err = d.Load()
	require.ErrorIs(t, err, ErrPoisoned)
	require.ErrorIs(t, d.Store(0.1), ErrPoisoned)
	require.ErrorIs(t, d.Update(func(v float64) float64 { return v }), ErrPoisoned)
}

func TestDutyCycle_ConcurrentReadersSeeWrittenValues(t *testing.T) {
	d, err := NewDutyCycle(0)
	require.NoError(t, err)

	valid := map[float64]bool{0: true, 0.25: true, 0.5: true, 0.75: true}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		v := []float64{0.25, 0.5, 0.75, 0}[w]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = d.Store(v)
			}
		}()
	}
	bad := make(chan float64, 1)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				got, err := d.Load()
				if err != nil || !valid[got] {
					select {
					case bad <- got:
					default:
					}
					return
				}
			}
		}()
	}
	wg.Wait()
	select {
	case v := <-bad:
		t.Fatalf("observed value %v never written", v)
	default:
	}
}
