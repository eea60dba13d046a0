package app

import "time"

// FPSMeter считает завершённые циклы в окне длиной Window.
// На границе окна значение FPS фиксируется, счётчик сбрасывается.
type FPSMeter struct {
	Window time.Duration

	start time.Time
	count int
	fps   int
}

// NewFPSMeter создаёт счётчик с окном в одну секунду
func NewFPSMeter(now time.Time) *FPSMeter {
	return &FPSMeter{Window: time.Second, start: now}
}

// Observe учитывает один завершённый цикл
func (m *FPSMeter) Observe(now time.Time) int {
	m.Roll(now)
	m.count++
	return m.fps
}

// Roll закрывает истёкшие окна. Циклы первого из закрытых окон публикуются,
// даже если следующие окна прошли без вызовов Roll; FPS становится 0,
// только когда закрывается окно без циклов.
func (m *FPSMeter) Roll(now time.Time) int {
	elapsed := now.Sub(m.start)
	if elapsed < m.Window {
		return m.fps
	}
	m.fps = int(float64(m.count) * float64(time.Second) / float64(m.Window))
	m.count = 0
	m.start = m.start.Add(elapsed / m.Window * m.Window)
	return m.fps
}

// FPS возвращает значение за последнее закрытое окно
func (m *FPSMeter) FPS() int {
	return m.fps
}

// Reset обнуляет счётчик и начинает новое окно
func (m *FPSMeter) Reset(now time.Time) {
	m.start = now
	m.count = 0
	m.fps = 0
}
