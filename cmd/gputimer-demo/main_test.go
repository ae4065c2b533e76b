package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gogpu/gputimer"
	"github.com/gogpu/gputimer/backend/software"
)

func TestParsePasses(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []pass
		wantErr bool
	}{
		{"default", defaultPasses, []pass{
			{"shadow", 2 * time.Millisecond},
			{"geometry", 5 * time.Millisecond},
			{"lighting", 3 * time.Millisecond},
			{"post", time.Millisecond},
		}, false},
		{"spaces and empty items", " a:1us , ,b:2ms", []pass{{"a", time.Microsecond}, {"b", 2 * time.Millisecond}}, false},
		{"missing cost", "a", nil, true},
		{"bad duration", "a:fast", nil, true},
		{"empty name", ":1ms", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePasses(tt.list)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePasses() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePasses() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("pass %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRenderFrameSpansPasses(t *testing.T) {
	dev := software.New()
	passes := []pass{{"a", time.Millisecond}, {"b", 3 * time.Millisecond}}

	timer, err := gputimer.NewTimer(dev, gputimer.WithSampleWindow(2), gputimer.WithPasses("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	defer timer.Close()
	ft, err := gputimer.NewFrameTimer(dev, gputimer.WithSampleWindow(2))
	if err != nil {
		t.Fatal(err)
	}
	defer ft.Close()

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2; i++ {
		if err := renderFrame(dev, timer, ft, passes, rng, time.Microsecond, 0); err != nil {
			t.Fatal(err)
		}
		dev.Poll()
	}

	if got := timer.GPUAverage("a"); got != 1 {
		t.Errorf("GPUAverage(a) = %v, want 1", got)
	}
	if got := timer.GPUAverage("b"); got != 3 {
		t.Errorf("GPUAverage(b) = %v, want 3", got)
	}
	if got := ft.GPUAverage(); got != 4 {
		t.Errorf("frame GPUAverage() = %v, want 4", got)
	}
	if ft.CPUAverage() <= 0 {
		t.Errorf("frame CPUAverage() = %v, want > 0", ft.CPUAverage())
	}
}
