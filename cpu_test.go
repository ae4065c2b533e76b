package gputimer

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestCPUWindowScenario(t *testing.T) {
	clock := newFakeClock()
	timer, err := NewTimer(nil, WithSampleWindow(50), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		timer.StartCPU("draw")
		clock.Advance(10 * time.Millisecond)
		if err := timer.StopCPU("draw"); err != nil {
			t.Fatalf("StopCPU #%d error = %v", i, err)
		}
		if i < 49 && timer.CPUAverage("draw") != 0 {
			t.Fatalf("average published after %d samples", i+1)
		}
	}

	if got := timer.CPUAverage("draw"); got != 10.0 {
		t.Errorf("CPUAverage(draw) = %v, want 10", got)
	}
	if acc, n := cpuPending(t, timer, "draw"); acc != 0 || n != 0 {
		t.Errorf("pending after publish = (%v, %d), want (0, 0)", acc, n)
	}

	// The 51st pair starts a fresh accumulation.
	timer.StartCPU("draw")
	clock.Advance(4 * time.Millisecond)
	if err := timer.StopCPU("draw"); err != nil {
		t.Fatal(err)
	}
	if acc, n := cpuPending(t, timer, "draw"); acc != 4 || n != 1 {
		t.Errorf("pending after 51st = (%v, %d), want (4, 1)", acc, n)
	}
	if got := timer.CPUAverage("draw"); got != 10.0 {
		t.Errorf("CPUAverage(draw) = %v after 51st, want 10", got)
	}
}

func TestCPUAverageSixteenMillis(t *testing.T) {
	clock := newFakeClock()
	const window = 7
	timer, err := NewTimer(nil, WithSampleWindow(window), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < window; i++ {
		timer.StartCPU("x")
		clock.Advance(16 * time.Millisecond)
		if err := timer.StopCPU("x"); err != nil {
			t.Fatal(err)
		}
	}

	if got := timer.CPUAverage("x"); math.Abs(got-16) > 1e-9 {
		t.Errorf("CPUAverage(x) = %v, want 16", got)
	}
}

func TestCPUAverageMixedSamples(t *testing.T) {
	clock := newFakeClock()
	timer, err := NewTimer(nil, WithSampleWindow(4), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	for _, d := range []time.Duration{1, 2, 3, 10} {
		timer.StartCPU("update")
		clock.Advance(d * time.Millisecond)
		if err := timer.StopCPU("update"); err != nil {
			t.Fatal(err)
		}
	}

	if got := timer.CPUAverage("update"); math.Abs(got-4) > 1e-9 {
		t.Errorf("CPUAverage(update) = %v, want 4", got)
	}
}

func TestStopCPUWithoutStart(t *testing.T) {
	timer, err := NewTimer(nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		timer string
		setup func()
	}{
		{"never started", "ghost", func() {}},
		{"stopped twice", "twice", func() {
			timer.StartCPU("twice")
			_ = timer.StopCPU("twice")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			err := timer.StopCPU(tt.timer)
			if !errors.Is(err, ErrTimerNotStarted) {
				t.Errorf("StopCPU(%q) error = %v, want ErrTimerNotStarted", tt.timer, err)
			}
		})
	}
}

func TestStartCPURestarts(t *testing.T) {
	clock := newFakeClock()
	timer, err := NewTimer(nil, WithSampleWindow(1), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	timer.StartCPU("a")
	clock.Advance(100 * time.Millisecond)
	timer.StartCPU("a")
	clock.Advance(5 * time.Millisecond)
	if err := timer.StopCPU("a"); err != nil {
		t.Fatal(err)
	}

	if got := timer.CPUAverage("a"); got != 5 {
		t.Errorf("CPUAverage(a) = %v, want 5", got)
	}
}

func TestCPUIsolationAcrossNames(t *testing.T) {
	clock := newFakeClock()
	timer, err := NewTimer(nil, WithSampleWindow(2), WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	timer.StartCPU("B")
	clock.Advance(3 * time.Millisecond)
	if err := timer.StopCPU("B"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		timer.StartCPU("A")
		clock.Advance(8 * time.Millisecond)
		if err := timer.StopCPU("A"); err != nil {
			t.Fatal(err)
		}
	}

	if got := timer.CPUAverage("A"); got != 8 {
		t.Errorf("CPUAverage(A) = %v, want 8", got)
	}
	if got := timer.CPUAverage("B"); got != 0 {
		t.Errorf("CPUAverage(B) = %v, want 0", got)
	}
	if acc, n := cpuPending(t, timer, "B"); acc != 3 || n != 1 {
		t.Errorf("B pending = (%v, %d), want (3, 1)", acc, n)
	}
}

func TestCPUAverageUnknown(t *testing.T) {
	timer, err := NewTimer(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := timer.CPUAverage("nope"); got != 0 {
		t.Errorf("CPUAverage(nope) = %v, want 0", got)
	}
}
