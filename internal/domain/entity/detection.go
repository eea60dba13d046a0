package entity

// BBox прямоугольник в нормализованных координатах [0,1]
type BBox struct {
	X1 float32 `json:"x1"` // левая граница
	Y1 float32 `json:"y1"` // верхняя граница
	X2 float32 `json:"x2"` // правая граница
	Y2 float32 `json:"y2"` // нижняя граница
}

// Width возвращает ширину прямоугольника
func (b BBox) Width() float32 {
	return b.X2 - b.X1
}

// Height возвращает высоту прямоугольника
func (b BBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center возвращает координаты центра прямоугольника
func (b BBox) Center() (x, y float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Scale переводит нормализованный прямоугольник в пиксели кадра
func (b BBox) Scale(width, height int) (x1, y1, x2, y2 int) {
	w, h := float32(width), float32(height)
	return int(b.X1 * w), int(b.Y1 * h), int(b.X2 * w), int(b.Y2 * h)
}

// Detection одна распознанная область кадра
type Detection struct {
	ClassID   int     `json:"class_id"`
	ClassName string  `json:"class_name"`
	Score     float32 `json:"score"`
	BBox      BBox    `json:"bbox"`
}
