package container

import (
	"go.uber.org/zap"

	app "livevision/internal/application"
	"livevision/internal/domain/port"
)

type Container struct {
	UserService    *app.UserService
	ControlService *app.ControlService
}

func New(
	cfg app.DetectorConfig,
	userRepo port.UserRepository,
	engine port.Engine,
	source port.FrameSource,
	annotator port.Annotator,
	logger *zap.Logger,
) (*Container, error) {
	detector, err := app.NewDetector(cfg, engine, source,
		app.WithLogger(logger.Named("detector")))
	if err != nil {
		return nil, err
	}

	return &Container{
		UserService:    app.NewUserService(userRepo),
		ControlService: app.NewControlService(detector, annotator, logger.Named("control")),
	}, nil
}
