package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aedworks/coverplan/internal/domain"
)

func testAllocator(cfg Config) *Allocator {
	return New(cfg, zerolog.Nop())
}

func TestAllocateProportionalWithCeiling(t *testing.T) {
	// Ten units over three zones with priorities 0.1/0.3/0.6, floor 1,
	// ceiling 6: the proportional split lands on 2/3/5.
	a := testAllocator(Config{Floor: 1, Ceiling: 6})

	counts, err := a.Allocate(10, []ZonePriority{
		{Code: "Z1", Priority: 0.1},
		{Code: "Z2", Priority: 0.3},
		{Code: "Z3", Priority: 0.6},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Z1": 2, "Z2": 3, "Z3": 5}, counts)
}

func TestAllocateExactSum(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		total      int
		priorities []float64
	}{
		{"uncapped", Config{Floor: 1}, 25, []float64{0.9, 0.5, 0.3, 0.05}},
		{"tight ceiling", Config{Floor: 1, Ceiling: 7}, 25, []float64{0.9, 0.5, 0.3, 0.05}},
		{"floor only", Config{Floor: 2, Ceiling: 2}, 8, []float64{0.4, 0.4, 0.4, 0.4}},
		{"single zone", Config{Floor: 1}, 13, []float64{0.7}},
		{"zero floor zero units", Config{Floor: 0}, 0, []float64{0.2, 0.8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zones := make([]ZonePriority, len(tt.priorities))
			for i, p := range tt.priorities {
				zones[i] = ZonePriority{Code: string(rune('A' + i)), Priority: p}
			}

			counts, err := testAllocator(tt.cfg).Allocate(tt.total, zones)
			require.NoError(t, err)

			sum := 0
			ceiling := tt.cfg.Ceiling
			if ceiling <= 0 {
				ceiling = tt.total
			}
			for code, c := range counts {
				sum += c
				assert.GreaterOrEqual(t, c, tt.cfg.Floor, "zone %s below floor", code)
				assert.LessOrEqual(t, c, ceiling, "zone %s above ceiling", code)
			}
			assert.Equal(t, tt.total, sum)
			assert.Len(t, counts, len(zones))
		})
	}
}

func TestAllocateHigherPriorityNeverGetsLess(t *testing.T) {
	a := testAllocator(Config{Floor: 1})

	counts, err := a.Allocate(50, []ZonePriority{
		{Code: "LOW", Priority: 0.1},
		{Code: "MID", Priority: 0.4},
		{Code: "HIGH", Priority: 0.9},
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, counts["HIGH"], counts["MID"])
	assert.GreaterOrEqual(t, counts["MID"], counts["LOW"])
}

func TestAllocateInfeasibleFloor(t *testing.T) {
	a := testAllocator(Config{Floor: 1})

	_, err := a.Allocate(2, []ZonePriority{
		{Code: "A", Priority: 0.5},
		{Code: "B", Priority: 0.3},
		{Code: "C", Priority: 0.2},
	})
	assert.ErrorIs(t, err, domain.ErrInfeasibleAllocation)
}

func TestAllocateInfeasibleCeiling(t *testing.T) {
	a := testAllocator(Config{Floor: 1, Ceiling: 2})

	_, err := a.Allocate(10, []ZonePriority{
		{Code: "A", Priority: 0.5},
		{Code: "B", Priority: 0.3},
	})
	assert.ErrorIs(t, err, domain.ErrInfeasibleAllocation)
}

func TestAllocateEqualPrioritiesDeterministicTies(t *testing.T) {
	a := testAllocator(Config{Floor: 0})

	// Five units over four equal-priority zones: the extra unit goes to
	// the lexicographically first zone code.
	counts, err := a.Allocate(5, []ZonePriority{
		{Code: "D", Priority: 0.5},
		{Code: "B", Priority: 0.5},
		{Code: "C", Priority: 0.5},
		{Code: "A", Priority: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 1, "D": 1}, counts)
}

func TestAllocateInputIndependentOfOrder(t *testing.T) {
	zones := []ZonePriority{
		{Code: "A", Priority: 0.7},
		{Code: "B", Priority: 0.2},
		{Code: "C", Priority: 0.1},
	}
	reversed := []ZonePriority{zones[2], zones[1], zones[0]}

	a := testAllocator(Config{Floor: 1, Ceiling: 8})
	first, err := a.Allocate(12, zones)
	require.NoError(t, err)
	second, err := a.Allocate(12, reversed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAllocateNoZones(t *testing.T) {
	_, err := testAllocator(DefaultConfig()).Allocate(5, nil)
	require.Error(t, err)
}

func TestAllocateNegativeTotal(t *testing.T) {
	_, err := testAllocator(DefaultConfig()).Allocate(-1, []ZonePriority{{Code: "A", Priority: 1}})
	require.Error(t, err)
}
