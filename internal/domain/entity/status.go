package entity

// Status состояние жизненного цикла детектора
type Status string

const (
	StatusIdle      Status = "idle"      // Сессия ещё не загружалась
	StatusLoading   Status = "loading"   // Идёт загрузка модели
	StatusReady     Status = "ready"     // Модель загружена, цикл остановлен
	StatusDetecting Status = "detecting" // Цикл распознавания запущен
	StatusError     Status = "error"     // Загрузка не удалась, нужна новая попытка
)

var transitions = map[Status][]Status{
	StatusIdle:      {StatusLoading},
	StatusLoading:   {StatusReady, StatusError, StatusIdle},
	StatusReady:     {StatusDetecting, StatusIdle},
	StatusDetecting: {StatusReady},
	StatusError:     {StatusLoading},
}

// CanTransition проверяет, разрешён ли переход между состояниями
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
