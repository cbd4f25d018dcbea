package core

import "github.com/spaghettifunk/vkbase/engine/containers"

const AVG_COUNT = 30

// FrameMetrics keeps a rolling frame time average and a once-per-second FPS sample.
type FrameMetrics struct {
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	skipped            uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records a frame that took frameElapsedTime seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.frameTimes.Push(frameMS)

	total := 0.0
	m.frameTimes.Each(func(ms float64) { total += ms })
	m.msAvg = total / float64(m.frameTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	m.frames++
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
}

// Skip counts a loop iteration that did not produce a frame.
func (m *FrameMetrics) Skip() {
	m.skipped++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

func (m *FrameMetrics) Skipped() uint64 {
	return m.skipped
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
