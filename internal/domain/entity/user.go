package entity

// UserState состояние чата в диалоге с ботом
type UserState string

const (
	StateMainMenu          UserState = "main_menu"          // В главном меню
	StateAwaitingThreshold UserState = "awaiting_threshold" // Ожидание нового порога уверенности
)

// User представляет чат, управляющий детектором
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние диалога
}

// NewUser создаёт пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// AwaitingThreshold сообщает, ждёт ли бот от чата значение порога
func (u *User) AwaitingThreshold() bool {
	return u.State == StateAwaitingThreshold
}
