package perfstats

import (
	"sync"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// UpdateMovingAverage blends a new sample into an exponential moving average (weight 1/16).
// The first sample initializes the average.
func UpdateMovingAverage(avg *int64, sample int64) {
	if *avg == 0 {
		*avg = sample
	} else {
		*avg = (*avg*15 + sample) / 16
	}
}

// Pipeline tracks the time spent in the stages of a detection request.
// It is safe for concurrent use.
type Pipeline struct {
	mutex      sync.Mutex
	decode     TimeAccumulator
	detect     TimeAccumulator
	failures   int64
	recentNano int64 // moving average of detect time
}

// PipelineSnapshot is a copy of the counters of a Pipeline, in milliseconds
type PipelineSnapshot struct {
	Images          int64   `json:"images"`
	Failures        int64   `json:"failures"`
	AvgDecodeMS     float64 `json:"avgDecodeMS"`
	AvgDetectMS     float64 `json:"avgDetectMS"`
	RecentDetectMS  float64 `json:"recentDetectMS"`
	TotalDetectTime float64 `json:"totalDetectSeconds"`
}

func (p *Pipeline) AddDecode(d time.Duration) {
	p.mutex.Lock()
	p.decode.AddSample(d)
	p.mutex.Unlock()
}

func (p *Pipeline) AddDetect(d time.Duration) {
	p.mutex.Lock()
	p.detect.AddSample(d)
	UpdateMovingAverage(&p.recentNano, d.Nanoseconds())
	p.mutex.Unlock()
}

func (p *Pipeline) AddFailure() {
	p.mutex.Lock()
	p.failures++
	p.mutex.Unlock()
}

func (p *Pipeline) Snapshot() PipelineSnapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	ms := func(d time.Duration) float64 {
		return float64(d.Nanoseconds()) / 1e6
	}
	return PipelineSnapshot{
		Images:          p.detect.Samples,
		Failures:        p.failures,
		AvgDecodeMS:     ms(p.decode.Average()),
		AvgDetectMS:     ms(p.detect.Average()),
		RecentDetectMS:  ms(time.Duration(p.recentNano)),
		TotalDetectTime: p.detect.Total.Seconds(),
	}
}

func (p *Pipeline) Reset() {
	p.mutex.Lock()
	p.decode.Reset()
	p.detect.Reset()
	p.failures = 0
	p.recentNano = 0
	p.mutex.Unlock()
}
