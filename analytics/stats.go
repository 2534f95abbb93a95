package analytics

import "math"

// RunningStats accumulates count, sum, min and max of a stream of values.
type RunningStats struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (rs *RunningStats) Add(value float64) {
	if rs.count == 0 {
		rs.min, rs.max = value, value
	} else {
		rs.min = math.Min(rs.min, value)
		rs.max = math.Max(rs.max, value)
	}
	rs.sum += value
	rs.count++
}

func (rs *RunningStats) Count() int {
	return rs.count
}

func (rs *RunningStats) Sum() float64 {
	return rs.sum
}

func (rs *RunningStats) Average() float64 {
	if rs.count == 0 {
		return 0.0
	}
	return rs.sum / float64(rs.count)
}

func (rs *RunningStats) Min() float64 {
	return rs.min
}

func (rs *RunningStats) Max() float64 {
	return rs.max
}
