package store

import (
	"testing"

	"github.com/hyperalpha/arena/internal/model"
)

func TestNewSamplingStoreSeed(t *testing.T) {
	s := NewSamplingStore(nil, model.SamplingConfig{IntervalSeconds: 30, WindowSize: 500})
	if s.seed.IntervalSeconds != 30 || s.seed.WindowSize != 500 {
		t.Errorf("seed = %+v, want 30/500", s.seed)
	}

	s = NewSamplingStore(nil, model.SamplingConfig{})
	if s.seed.IntervalSeconds != 18 || s.seed.WindowSize != 200 {
		t.Errorf("zero seed = %+v, want 18/200 fallback", s.seed)
	}
}
