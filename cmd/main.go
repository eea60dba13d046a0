package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"livevision/config"
	"livevision/internal/api/rest"
	"livevision/internal/api/telegram"
	app "livevision/internal/application"
	"livevision/internal/container"
	"livevision/internal/domain/port"
	"livevision/internal/infrastructure/onnx"
	"livevision/internal/infrastructure/storage"
	"livevision/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	labels, err := cfg.ClassLabels()
	if err != nil {
		return err
	}

	engine, annotator := newEngine(cfg)
	source := newSource(cfg.Camera)

	// Собираем сервисы приложения
	appContainer, err := container.New(app.DetectorConfig{
		ModelPath:        cfg.ModelPath,
		Labels:           labels,
		TargetSize:       cfg.TargetSize,
		Threshold:        cfg.ConfidenceThreshold,
		TickInterval:     cfg.TickInterval,
		MaxFrameFailures: cfg.MaxFrameFailures,
	}, storage.NewMemoryUserRepository(), engine, source, annotator, logger)
	if err != nil {
		return err
	}
	control := appContainer.ControlService

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.UserService, control, logger.Named("bot"))
		if err != nil {
			return err
		}
		control.OnLoad(bot.NotifyLoad)
		g.Go(func() error { return bot.Run(gctx) })
	} else {
		logger.Warn("TELEGRAM_TOKEN is empty, bot disabled")
	}

	if cfg.HTTPAddr != "" {
		server := rest.NewServer(cfg.HTTPAddr, control, logger.Named("rest"))
		g.Go(func() error { return server.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// модель грузится в фоне, ошибка загрузки видна в состоянии
	g.Go(func() error {
		_ = control.Load(gctx)
		return nil
	})

	logger.Info("service is running",
		zap.String("engine", cfg.Engine),
		zap.String("source", source.Name()),
		zap.Int("labels", len(labels)))

	err = g.Wait()
	if cerr := control.Close(); cerr != nil {
		logger.Error("release detector", zap.Error(cerr))
	}
	return err
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newEngine(cfg *config.Config) (port.Engine, port.Annotator) {
	if cfg.Engine == config.EngineGoCV {
		return vision.NewCVEngine(), vision.NewCVAnnotator()
	}
	return onnx.NewEngine(onnx.Config{
		LibraryPath: cfg.ONNXLibPath,
		InputName:   cfg.ONNXInputName,
		OutputName:  cfg.ONNXOutputName,
		Threads:     cfg.ONNXThreads,
	}), vision.NewDrawAnnotator()
}

var stillExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true, ".tif": true, ".tiff": true}

// newSource индекс устройства или видео идут в OpenCV, картинка читается с диска
func newSource(camera string) port.FrameSource {
	if _, err := strconv.Atoi(camera); err == nil {
		return vision.NewCamera(camera)
	}
	if stillExt[strings.ToLower(filepath.Ext(camera))] {
		return vision.NewStillImage(camera)
	}
	return vision.NewCamera(camera)
}
