package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "livevision/internal/application"
	"livevision/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я слежу за камерой и распознаю объекты в кадре.

📋 Команды:
/detect — запустить распознавание
/stop — остановить распознавание
/status — текущее состояние и найденные объекты
/threshold — порог уверенности
/snapshot — последний кадр с рамками
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Дождитесь сообщения о загрузке модели
2️⃣ Отправьте /detect, чтобы включить камеру
3️⃣ /status покажет найденные объекты, /snapshot пришлёт кадр

🎚 Порог уверенности:
/threshold 0.7 — задать сразу
/threshold — бот спросит значение

📋 Команды:
/detect /stop /status /threshold /snapshot /cancel`

	msgDetectStarted   = "▶️ Распознавание запущено."
	msgDetectStopped   = "⏹ Распознавание остановлено."
	msgAlreadyRunning  = "ℹ️ Распознавание уже идёт."
	msgNotRunning      = "ℹ️ Распознавание не запущено."
	msgModelLoading    = "⏳ Модель ещё загружается, попробуйте чуть позже."
	msgModelNotLoaded  = "⚠️ Модель не загружена."
	msgCameraError     = "📷 Камера недоступна: %v"
	msgAskThreshold    = "🎚 Текущий порог: %.2f\nОтправьте новое значение от 0 до 1."
	msgThresholdSet    = "✅ Порог уверенности: %.2f"
	msgBadThreshold    = "⚠️ Нужно число от 0 до 1, например 0.6"
	msgNoFrame         = "🖼 Обработанных кадров пока нет. Запустите /detect."
	msgCancelled       = "❌ Операция отменена."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgUnknownText     = "💬 Используйте команды, список: /help"
	msgModelReady      = "✅ Модель загружена, можно запускать /detect."
	msgModelFailed     = "⚠️ Не удалось загрузить модель: %v"
	msgProcessingError = "⚠️ Не удалось выполнить команду."
)

// Controller операции детектора, доступные из чата
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SetThreshold(v float32) error
	Threshold() float32
	Status() entity.Snapshot
	AnnotatedFrame() ([]byte, entity.Snapshot, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api     *tgbotapi.BotAPI
	send    sender
	users   *app.UserService
	control Controller
	logger  *zap.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, control Controller, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	logger.Info("authorized on account", zap.String("username", api.Self.UserName))

	b := newBot(api, users, control, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, users *app.UserService, control Controller, logger *zap.Logger) *Bot {
	return &Bot{
		send:    s,
		users:   users,
		control: control,
		logger:  logger,
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// NotifyLoad рассылает исход загрузки модели всем известным чатам
func (b *Bot) NotifyLoad(ctx context.Context, err error) {
	chats, lerr := b.users.ChatIDs(ctx)
	if lerr != nil {
		b.logger.Error("list chats", zap.Error(lerr))
		return
	}

	text := msgModelReady
	if err != nil {
		text = fmt.Sprintf(msgModelFailed, err)
	}
	for _, id := range chats {
		b.sendMessage(id, text)
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if user.AwaitingThreshold() {
		b.applyThreshold(ctx, msg.Chat.ID, user, msg.Text)
		return
	}

	b.sendMessage(msg.Chat.ID, msgUnknownText)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.resetState(ctx, user)
		b.sendMessage(chatID, msgStart+"\n\n"+modelStateText(b.control.Status()))

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "detect":
		b.sendMessage(chatID, b.startText(b.control.Start(ctx)))

	case "stop":
		switch err := b.control.Stop(); {
		case err == nil:
			b.sendMessage(chatID, msgDetectStopped)
		case errors.Is(err, entity.ErrNotDetecting):
			b.sendMessage(chatID, msgNotRunning)
		default:
			b.logger.Error("stop detection", zap.Error(err))
			b.sendMessage(chatID, msgProcessingError)
		}

	case "status":
		b.sendMessage(chatID, formatStatus(b.control.Status(), b.control.Threshold()))

	case "threshold":
		if arg := msg.CommandArguments(); arg != "" {
			b.applyThreshold(ctx, chatID, user, arg)
			return
		}
		if _, err := b.users.AwaitThreshold(ctx, user.ID, chatID); err != nil {
			b.logger.Error("save user state", zap.Error(err))
		}
		b.sendMessage(chatID, fmt.Sprintf(msgAskThreshold, b.control.Threshold()))

	case "snapshot":
		b.sendSnapshot(chatID)

	case "cancel":
		b.resetState(ctx, user)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// modelStateText исход загрузки модели для чатов, подключившихся после неё
func modelStateText(s entity.Snapshot) string {
	switch s.Status {
	case entity.StatusLoading:
		return msgModelLoading
	case entity.StatusError:
		return fmt.Sprintf(msgModelFailed, s.Error)
	case entity.StatusReady, entity.StatusDetecting:
		return msgModelReady
	default:
		return msgModelNotLoaded
	}
}

func (b *Bot) startText(err error) string {
	var acqErr *entity.AcquisitionError
	switch {
	case err == nil:
		return msgDetectStarted
	case errors.Is(err, entity.ErrAlreadyDetecting):
		return msgAlreadyRunning
	case errors.Is(err, entity.ErrLoading):
		return msgModelLoading
	case errors.Is(err, entity.ErrNotLoaded):
		return msgModelNotLoaded
	case errors.As(err, &acqErr):
		return fmt.Sprintf(msgCameraError, acqErr.Err)
	default:
		b.logger.Error("start detection", zap.Error(err))
		return msgProcessingError
	}
}

// applyThreshold разбирает и применяет новое значение порога
func (b *Bot) applyThreshold(ctx context.Context, chatID int64, user *entity.User, text string) {
	v, err := parseThreshold(text)
	if err == nil {
		err = b.control.SetThreshold(v)
	}
	if err != nil {
		// чат остаётся в ожидании значения
		b.sendMessage(chatID, msgBadThreshold)
		return
	}

	b.resetState(ctx, user)
	b.sendMessage(chatID, fmt.Sprintf(msgThresholdSet, v))
}

func (b *Bot) sendSnapshot(chatID int64) {
	data, snap, err := b.control.AnnotatedFrame()
	if errors.Is(err, entity.ErrNoFrame) {
		b.sendMessage(chatID, msgNoFrame)
		return
	}
	if err != nil {
		b.logger.Error("annotate frame", zap.Error(err))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "snapshot.jpg", Bytes: data})
	photo.Caption = formatDetections(snap.Detections)
	if _, err := b.send.Send(photo); err != nil {
		b.logger.Error("send photo", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) resetState(ctx context.Context, user *entity.User) {
	if user.State == entity.StateMainMenu {
		return
	}
	if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
		b.logger.Error("save user state", zap.Error(err))
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.send.Send(msg); err != nil {
		b.logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
