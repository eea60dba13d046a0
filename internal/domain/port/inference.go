package port

import (
	"context"

	"livevision/internal/domain/entity"
)

// Engine внешний движок нейросети
type Engine interface {
	// Load загружает модель и возвращает готовую к выполнению сессию.
	// Ошибка загрузки возвращается как *entity.LoadError.
	Load(ctx context.Context, modelPath string) (Session, error)
}

// Session загруженная модель, создаётся один раз и переиспользуется всеми циклами
type Session interface {
	// Run выполняет модель на входном тензоре [1,3,size,size].
	// Ошибка выполнения возвращается как *entity.ExecutionError.
	Run(ctx context.Context, input entity.Tensor) (entity.Tensor, error)

	// Close освобождает ресурсы сессии
	Close() error
}
