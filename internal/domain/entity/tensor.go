package entity

import (
	"fmt"
	"math"
)

// Tensor плоский буфер float32 с формой многомерного массива
type Tensor struct {
	Data  []float32 // значения в row-major порядке
	Shape []int     // размеры по осям
}

// NewTensor создаёт тензор и проверяет, что длина данных совпадает с произведением размеров
func NewTensor(data []float32, shape ...int) (Tensor, error) {
	t := Tensor{Data: data, Shape: shape}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// Elements возвращает произведение размеров формы, 0 для некорректной формы
func (t Tensor) Elements() int {
	n, err := t.elements()
	if err != nil {
		return 0
	}
	return n
}

func (t Tensor) elements() (int, error) {
	if len(t.Shape) == 0 {
		return 0, nil
	}
	n := 1
	for i, d := range t.Shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: negative dimension %d at axis %d", d, i)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("tensor: shape %v overflows int", t.Shape)
		}
		n *= d
	}
	return n, nil
}

// Validate проверяет инвариант len(data) == product(shape)
func (t Tensor) Validate() error {
	n, err := t.elements()
	if err != nil {
		return err
	}
	if len(t.Data) != n {
		return fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(t.Data), t.Shape, n)
	}
	return nil
}

// Reshape возвращает тензор с теми же данными и новой формой
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	return NewTensor(t.Data, shape...)
}
