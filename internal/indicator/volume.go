package indicator

import "math"

const neutralVolumeRatio = 1.0

// VolumeAnomaly rates the current bar's volume against the bars before it and
// keeps the largest of three ratios:
//
//	volume / mean(short prior window)
//	volume / max(long prior window)
//	sum(last k volumes) / (mean(long prior window) * k)
//
// A ratio with a zero baseline counts as 1.
type VolumeAnomaly struct {
	sumBars int
	short   *Window
	long    *Window
	recent  *Window

	ratio float64
	ready bool
}

func NewVolumeAnomaly(shortPeriod, longPeriod, sumBars int) *VolumeAnomaly {
	return &VolumeAnomaly{
		sumBars: sumBars,
		short:   NewWindow(shortPeriod),
		long:    NewWindow(longPeriod),
		recent:  NewWindow(sumBars),
		ratio:   neutralVolumeRatio,
	}
}

func (v *VolumeAnomaly) Update(volume float64) {
	v.recent.Update(volume)

	if v.long.Ready() && v.short.Ready() {
		spike := ratioOrOne(volume, v.short.Mean())
		peak := ratioOrOne(volume, v.long.Max())
		burst := ratioOrOne(v.recent.Sum(), v.long.Mean()*float64(v.sumBars))
		v.ratio = math.Max(spike, math.Max(peak, burst))
		v.ready = true
	}

	v.short.Update(volume)
	v.long.Update(volume)
}

func (v *VolumeAnomaly) Ready() bool {
	return v.ready
}

func (v *VolumeAnomaly) Value() float64 {
	return v.ratio
}

func ratioOrOne(num, den float64) float64 {
	if den <= 0 || math.IsNaN(den) || math.IsNaN(num) {
		return 1.0
	}
	return num / den
}
