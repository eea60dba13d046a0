package app

import (
	"context"

	"livevision/internal/domain/entity"
	"livevision/internal/domain/port"
)

// UserService ведёт состояние диалога для каждого чата
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SetState(state)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// AwaitThreshold переводит чат в ожидание значения порога
func (s *UserService) AwaitThreshold(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingThreshold)
}

func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// ChatIDs возвращает чаты без повторов в порядке ID пользователей
func (s *UserService) ChatIDs(ctx context.Context) ([]int64, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(users))
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u.ChatID]; ok {
			continue
		}
		seen[u.ChatID] = struct{}{}
		ids = append(ids, u.ChatID)
	}
	return ids, nil
}
