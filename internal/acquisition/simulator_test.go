package acquisition

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_collector/internal/imu"
)

// collector is an Emitter that keeps everything it receives.
type collector struct {
	mu     sync.Mutex
	accel  []imu.Sample3
	gyro   []imu.Sample3
	motion []imu.CompositeMotionSample
}

func (c *collector) OnSimulatedTick(acc, gyro imu.Sample3, m imu.CompositeMotionSample) {
	c.mu.Lock()
	c.accel = append(c.accel, acc)
	c.gyro = append(c.gyro, gyro)
	c.motion = append(c.motion, m)
	c.mu.Unlock()
}

func (c *collector) ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.accel)
}

func TestSimulator_HundredTicksPerSimulatedSecond(t *testing.T) {
	t.Parallel()

	ticker := newManualTicker()
	sim := NewSimulator(DefaultSimPeriod).WithTicker(ticker.Func)
	out := &collector{}

	require.NoError(t, sim.Start(out))
	ticker.Tick(100)
	sim.Stop()

	require.Len(t, out.accel, 100)
	require.Len(t, out.gyro, 100)
	require.Len(t, out.motion, 100)

	// 100 ticks at 10 ms cover one simulated second.
	assert.InDelta(t, 0.0, out.accel[0].Timestamp, 1e-12)
	assert.InDelta(t, 0.99, out.accel[99].Timestamp, 1e-9)
	for i := 1; i < 100; i++ {
		assert.GreaterOrEqual(t, out.accel[i].Timestamp, out.accel[i-1].Timestamp)
		assert.Equal(t, out.accel[i].Timestamp, out.motion[i].Timestamp)
		assert.Equal(t, out.accel[i].Timestamp, out.gyro[i].Timestamp)
	}
}

func TestSimulator_RealTickerRate(t *testing.T) {
	t.Parallel()

	sim := NewSimulator(DefaultSimPeriod)
	out := &collector{}
	require.NoError(t, sim.Start(out))
	time.Sleep(500 * time.Millisecond)
	sim.Stop()

	// Loose bounds: scheduler jitter on shared CI machines.
	n := out.ticks()
	assert.GreaterOrEqual(t, n, 25)
	assert.LessOrEqual(t, n, 55)
}

func TestSimulator_StopIsJoinBarrier(t *testing.T) {
	t.Parallel()

	sim := NewSimulator(time.Millisecond)
	out := &collector{}
	require.NoError(t, sim.Start(out))
	assert.Eventually(t, func() bool { return out.ticks() > 3 }, 2*time.Second, time.Millisecond)
	sim.Stop()

	n := out.ticks()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, out.ticks())
	assert.False(t, sim.Running())

	// Stopping twice is harmless.
	sim.Stop()
}

func TestSimulator_Restartable(t *testing.T) {
	t.Parallel()

	ticker := newManualTicker()
	sim := NewSimulator(DefaultSimPeriod).WithTicker(ticker.Func)

	first := &collector{}
	require.NoError(t, sim.Start(first))
	assert.ErrorIs(t, sim.Start(first), ErrInvalidTransition)
	ticker.Tick(20)
	sim.Stop()

	second := &collector{}
	require.NoError(t, sim.Start(second))
	ticker.Tick(20)
	sim.Stop()

	require.Len(t, second.accel, 20)
	// Each run restarts its timestamp base.
	assert.Equal(t, 0.0, second.accel[0].Timestamp)
	// Same shape, fresh jitter.
	differs := false
	for i := range first.accel {
		if first.accel[i].X != second.accel[i].X {
			differs = true
			break
		}
	}
	assert.True(t, differs, "second run repeated the first run's noise")
}

func TestSimulate_BoundedAroundSignal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		ts := float64(i) * 0.01
		acc, gyro, motion := simulate(ts, rng)

		require.True(t, acc.Finite())
		require.True(t, gyro.Finite())
		require.True(t, motion.Finite())

		wantX := 0.3 * math.Sin(2*math.Pi*0.5*ts)
		assert.LessOrEqual(t, math.Abs(acc.X-wantX), SimJitter)
		wantZ := -1 + 0.05*math.Sin(2*math.Pi*2*ts)
		assert.LessOrEqual(t, math.Abs(acc.Z-wantZ), SimJitter)
		assert.InDelta(t, -40, motion.MagneticField.Z, SimJitter)

		g := motion.Gravity
		assert.InDelta(t, 1, math.Sqrt(g.X*g.X+g.Y*g.Y+g.Z*g.Z), 1e-9)
	}
}
