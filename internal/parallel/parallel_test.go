package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	configs := map[string]Config{
		"default":    DefaultConfig(),
		"sequential": Sequential(),
		"wide":       {Enabled: true, NumWorkers: 7, MinChunkSize: 1},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			const n = 1000
			hits := make([]int32, n)
			For(n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			}, cfg)
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestForBatch(t *testing.T) {
	var sum atomic.Int64
	ForBatch(3, 4, func(b, c int) {
		sum.Add(int64(b*10 + c))
	}, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	// sum over b in 0..2, c in 0..3 of (10b + c) = 4*10*(0+1+2) + 3*(0+1+2+3)
	assert.Equal(t, int64(138), sum.Load())
}
