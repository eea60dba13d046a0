package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"livevision/internal/domain/entity"
)

var statusText = map[entity.Status]string{
	entity.StatusIdle:      "💤 модель не загружена",
	entity.StatusLoading:   "⏳ загрузка модели",
	entity.StatusReady:     "✅ готов",
	entity.StatusDetecting: "▶️ распознавание",
	entity.StatusError:     "⚠️ ошибка",
}

// parseThreshold принимает 0.7, 0,7 или 70%
func parseThreshold(text string) (float32, error) {
	s := strings.TrimSpace(text)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("parse threshold %q: %w", text, err)
	}
	if percent {
		v /= 100
	}
	if v != v || v < 0 || v > 1 {
		return 0, entity.ErrInvalidThreshold
	}
	return float32(v), nil
}

// formatStatus текст ответа на /status
func formatStatus(s entity.Snapshot, threshold float32) string {
	var b strings.Builder

	label, ok := statusText[s.Status]
	if !ok {
		label = string(s.Status)
	}
	fmt.Fprintf(&b, "Состояние: %s\n", label)
	fmt.Fprintf(&b, "Порог: %.2f\n", threshold)
	if s.IsDetecting {
		fmt.Fprintf(&b, "FPS: %d, кадров: %d\n", s.FPS, s.FrameCount)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "Ошибка: %s\n", s.Error)
	}
	if s.IsDetecting {
		b.WriteString(formatDetections(s.Detections))
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatDetections перечисляет найденные объекты
func formatDetections(dets []entity.Detection) string {
	if len(dets) == 0 {
		return "Объекты не найдены."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Найдено объектов: %d\n", len(dets))
	for i, d := range dets {
		fmt.Fprintf(&b, "%d. %s %.0f%%\n", i+1, d.ClassName, d.Score*100)
	}
	return strings.TrimRight(b.String(), "\n")
}
