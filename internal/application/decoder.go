package app

import (
	"math"

	"livevision/internal/domain/entity"
)

// boxRows число строк с параметрами рамки (cx, cy, w, h) в выходе модели
const boxRows = 4

// Decoder разбирает сырой выход модели [1, 4+numClasses, numDetections] в детекции
type Decoder struct {
	TargetSize int // сторона входа модели, в которой заданы рамки
}

// NewDecoder создаёт декодер для входа модели заданного размера
func NewDecoder(targetSize int) *Decoder {
	return &Decoder{TargetSize: targetSize}
}

// ValidateOutput проверяет форму выходного тензора
func ValidateOutput(out entity.Tensor) error {
	if len(out.Shape) != 3 {
		return &entity.MalformedOutputError{Shape: out.Shape, Reason: "expected 3 dimensions"}
	}
	if out.Shape[0] != 1 {
		return &entity.MalformedOutputError{Shape: out.Shape, Reason: "expected batch size 1"}
	}
	if out.Shape[1] < boxRows+1 {
		return &entity.MalformedOutputError{Shape: out.Shape, Reason: "expected at least 5 rows"}
	}
	if err := out.Validate(); err != nil {
		return &entity.MalformedOutputError{Shape: out.Shape, Reason: err.Error()}
	}
	return nil
}

// Decode возвращает кандидатов со счётом строго выше порога в порядке индексов.
// Для каждого кандидата побеждает один класс с максимальным сырым счётом.
// Подавление пересекающихся рамок не выполняется.
func (d *Decoder) Decode(out entity.Tensor, threshold float32, labels entity.ClassLabelTable) []entity.Detection {
	detections := make([]entity.Detection, 0)
	if ValidateOutput(out) != nil || d.TargetSize <= 0 {
		return detections
	}

	numOutputs, numDetections := out.Shape[1], out.Shape[2]
	numClasses := numOutputs - boxRows
	size := float32(d.TargetSize)
	at := func(row, col int) float32 { return out.Data[row*numDetections+col] }

	for i := 0; i < numDetections; i++ {
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)

		maxScore := float32(math.Inf(-1))
		maxClassID := -1
		for c := 0; c < numClasses; c++ {
			// NaN не участвует в выборе класса
			if s := at(boxRows+c, i); s > maxScore {
				maxScore = s
				maxClassID = c
			}
		}
		if maxClassID < 0 {
			continue
		}
		score := clamp01(maxScore)

		if !(score > threshold) {
			continue
		}
		name, ok := labels.Label(maxClassID)
		if !ok {
			continue
		}

		detections = append(detections, entity.Detection{
			ClassID:   maxClassID,
			ClassName: name,
			Score:     score,
			BBox:      cornerBox(cx, cy, w, h, size),
		})
	}

	return detections
}

// cornerBox переводит центр и размер в углы, нормализует на size и обрезает до [0,1].
// Рамка у края кадра может выродиться в нулевую площадь.
func cornerBox(cx, cy, w, h, size float32) entity.BBox {
	x1, x2 := clamp01((cx-w/2)/size), clamp01((cx+w/2)/size)
	y1, y2 := clamp01((cy-h/2)/size), clamp01((cy+h/2)/size)
	// отрицательная ширина или высота от битой модели
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return entity.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// clamp01 обрезает значение до [0,1], NaN превращается в 0
func clamp01(v float32) float32 {
	if !(v >= 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
