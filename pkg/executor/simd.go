package executor

import "sync/atomic"

// The summation kernels process 8 int32 lanes or 4 int64 lanes per step,
// folding the lane accumulators at the end, with a scalar tail. A runtime
// toggle falls back to the scalar reference implementation; both paths
// produce identical results (integer sums wrap around).

var vectorized atomic.Bool

func init() { vectorized.Store(true) }

// SetVectorized switches the batched kernels on or off at runtime.
func SetVectorized(on bool) { vectorized.Store(on) }

// VectorizedEnabled reports the current kernel mode.
func VectorizedEnabled() bool { return vectorized.Load() }

func sumInt32s(values []int32) int32 {
	if !vectorized.Load() {
		var sum int32
		for _, v := range values {
			sum += v
		}
		return sum
	}
	const lanes = 8
	var acc [lanes]int32
	aligned := len(values) / lanes * lanes
	for i := 0; i < aligned; i += lanes {
		acc[0] += values[i]
		acc[1] += values[i+1]
		acc[2] += values[i+2]
		acc[3] += values[i+3]
		acc[4] += values[i+4]
		acc[5] += values[i+5]
		acc[6] += values[i+6]
		acc[7] += values[i+7]
	}
	sum := acc[0] + acc[1] + acc[2] + acc[3] + acc[4] + acc[5] + acc[6] + acc[7]
	for i := aligned; i < len(values); i++ {
		sum += values[i]
	}
	return sum
}

func sumInt64s(values []int64) int64 {
	if !vectorized.Load() {
		var sum int64
		for _, v := range values {
			sum += v
		}
		return sum
	}
	const lanes = 4
	var acc [lanes]int64
	aligned := len(values) / lanes * lanes
	for i := 0; i < aligned; i += lanes {
		acc[0] += values[i]
		acc[1] += values[i+1]
		acc[2] += values[i+2]
		acc[3] += values[i+3]
	}
	sum := acc[0] + acc[1] + acc[2] + acc[3]
	for i := aligned; i < len(values); i++ {
		sum += values[i]
	}
	return sum
}

// Float addition is kept strictly sequential so both kernel modes agree
// bit for bit.
func sumFloat32s(values []float32) float32 {
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum
}
