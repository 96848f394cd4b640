package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aedworks/coverplan/internal/domain"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name   string
		a, b   domain.Point
		wantM  float64
		deltaM float64
	}{
		{
			name:   "same point",
			a:      domain.Point{Latitude: 1.3521, Longitude: 103.8198},
			b:      domain.Point{Latitude: 1.3521, Longitude: 103.8198},
			wantM:  0,
			deltaM: 0.001,
		},
		{
			name:   "one degree of longitude at the equator",
			a:      domain.Point{Latitude: 0, Longitude: 0},
			b:      domain.Point{Latitude: 0, Longitude: 1},
			wantM:  111195,
			deltaM: 100,
		},
		{
			name:   "short city-scale hop",
			a:      domain.Point{Latitude: 1.3521, Longitude: 103.8198},
			b:      domain.Point{Latitude: 1.3571, Longitude: 103.8198},
			wantM:  556,
			deltaM: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantM, Distance(tt.a, tt.b), tt.deltaM)
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := domain.Point{Latitude: 1.3521, Longitude: 103.8198}
	b := domain.Point{Latitude: 1.2905, Longitude: 103.8520}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}
