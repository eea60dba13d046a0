package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"livevision/internal/domain/entity"
)

// MinTickInterval нижняя граница периода планировщика
const MinTickInterval = 10 * time.Millisecond

const (
	EngineONNX = "onnx"
	EngineGoCV = "gocv"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string

	ModelPath  string
	LabelsPath string
	Labels     string
	Engine     string

	ONNXLibPath    string
	ONNXInputName  string
	ONNXOutputName string
	ONNXThreads    int

	Camera              string
	TargetSize          int
	ConfidenceThreshold float32
	TickInterval        time.Duration
	MaxFrameFailures    int

	Debug bool
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		ModelPath:      getEnv("MODEL_PATH", "./models/model.onnx"),
		LabelsPath:     os.Getenv("LABELS_PATH"),
		Labels:         os.Getenv("LABELS"),
		Engine:         getEnv("ENGINE", EngineONNX),
		ONNXLibPath:    os.Getenv("ONNX_LIB_PATH"),
		ONNXInputName:  getEnv("ONNX_INPUT_NAME", "images"),
		ONNXOutputName: getEnv("ONNX_OUTPUT_NAME", "output0"),
		Camera:         getEnv("CAMERA", "0"),
	}

	var err error
	if cfg.TargetSize, err = getInt("TARGET_SIZE", 128); err != nil {
		return nil, err
	}
	if cfg.MaxFrameFailures, err = getInt("MAX_FRAME_FAILURES", 30); err != nil {
		return nil, err
	}
	if cfg.ONNXThreads, err = getInt("ONNX_THREADS", 0); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold, err = getFloat32("CONFIDENCE_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.TickInterval, err = getDuration("TICK_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getBool("DEBUG", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет диапазоны значений
func (c *Config) Validate() error {
	var errs []error
	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.Engine != EngineONNX && c.Engine != EngineGoCV {
		errs = append(errs, fmt.Errorf("ENGINE must be %q or %q, got %q", EngineONNX, EngineGoCV, c.Engine))
	}
	if c.TargetSize <= 0 {
		errs = append(errs, fmt.Errorf("TARGET_SIZE must be positive, got %d", c.TargetSize))
	}
	if t := c.ConfidenceThreshold; t != t || t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1], got %v", t))
	}
	if c.TickInterval < MinTickInterval {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be at least %s, got %s", MinTickInterval, c.TickInterval))
	}
	if c.MaxFrameFailures <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FRAME_FAILURES must be positive, got %d", c.MaxFrameFailures))
	}
	if c.ONNXThreads < 0 {
		errs = append(errs, fmt.Errorf("ONNX_THREADS must not be negative, got %d", c.ONNXThreads))
	}
	if c.Camera == "" {
		errs = append(errs, errors.New("CAMERA is required"))
	}
	return errors.Join(errs...)
}

// ClassLabels таблица меток из файла, из списка LABELS или метка по умолчанию
func (c *Config) ClassLabels() (entity.ClassLabelTable, error) {
	if c.LabelsPath != "" {
		return entity.LoadLabels(c.LabelsPath)
	}
	if labels := entity.ParseLabels(c.Labels); len(labels) > 0 {
		return labels, nil
	}
	return entity.ClassLabelTable{"object"}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat32(key string, defaultVal float32) (float32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return float32(f), nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
