package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mdobak/go-xerrors"

	"github.com/leapdrone/controller/domain/actuation"
	"github.com/leapdrone/controller/domain/diagnostic"
	"github.com/leapdrone/controller/domain/hover"
	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/api"
	"github.com/leapdrone/controller/pkg/broker"
	"github.com/leapdrone/controller/pkg/config"
	"github.com/leapdrone/controller/pkg/hardware"
	"github.com/leapdrone/controller/pkg/leap"
	customlog "github.com/leapdrone/controller/pkg/log"
	"github.com/leapdrone/controller/pkg/zeromq"
	"github.com/leapdrone/controller/services"
)

// controller owns every long-lived component of the process.
type controller struct {
	cfg    *config.BootstrapConfig
	logger customlog.Logger

	bus         *hardware.PCA9685Bus
	actuator    *actuation.AsyncActuator
	interpreter *motion.Interpreter
	hover       *hover.Loop
	broker      *broker.Broker
	runtime     *services.RuntimeConfigService
	zmq         *zeromq.ZeroMQService
	sensor      *leap.Client
	diagnostics *diagnostic.DiagnosticService
}

func newController(cfg *config.BootstrapConfig, logger customlog.Logger) (*controller, error) {
	c := &controller{cfg: cfg, logger: logger}

	initial, err := services.FromBootstrap(cfg)
	if err != nil {
		return nil, err
	}
	c.runtime, err = services.NewRuntimeConfigService(cfg.Data.RuntimeOptionsPath(), initial, logger.WithField("component", "config"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runtime config service: %w", err)
	}
	current := c.runtime.Current()

	inner := actuation.New(c.openBus(), actuation.Config{
		ChannelsPerQuad: cfg.Hardware.ChannelsPerQuad,
		Quads:           cfg.Hardware.Quads,
		Channels:        actuation.AxisChannelsFromMap(cfg.Hardware.AxisChannels),
		SyncDelay:       cfg.Hardware.SyncDelay(),
		ZeroThreshold:   cfg.Hardware.ZeroThreshold,
	}, logger.WithField("component", "actuation"))
	if err := inner.Init(); err != nil {
		logger.Errorf("Failed to drive quads to neutral: %v", err)
	}
	c.actuator = actuation.NewAsyncActuator(inner, cfg.Processing.ActuationQueueSize, logger.WithField("component", "actuation"))

	c.broker = broker.New(broker.DefaultPeerQueueSize, logger.WithField("component", "broker"))
	c.interpreter = motion.NewInterpreter(current.Options, logger.WithField("component", "motion"))
	c.hover = hover.NewLoop(c.actuator, current.PID, logger.WithField("component", "hover"))

	c.wire()

	if cfg.ZeroMQ.PublishBindAddress != "" || cfg.ZeroMQ.RequestBindAddress != "" {
		c.zmq, err = zeromq.NewZeroMQService(cfg.ZeroMQ, logger.WithField("component", "zeromq"))
		if err != nil {
			c.broker.Close()
			_ = c.actuator.Shutdown()
			return nil, fmt.Errorf("failed to initialize ZeroMQ service: %w", err)
		}
		snapshot := func() interface{} { return c.runtime.Current() }
		if err := zeromq.RegisterBrokerHandlers(c.zmq, c.broker, snapshot, logger.WithField("component", "zeromq")); err != nil {
			logger.Warnf("ZeroMQ mirror unavailable: %v", err)
		}
	}

	c.sensor = leap.NewClient(cfg.Sensor.URL, cfg.Sensor.ReconnectInterval(), c.interpreter.ProcessFrame, logger.WithField("component", "leap"))
	c.diagnostics = c.newDiagnostics()
	return c, nil
}

// openBus returns nil when the board is disabled or cannot be opened so
// the actuation layer runs as a no-op.
func (c *controller) openBus() actuation.Bus {
	hw := c.cfg.Hardware
	if !hw.Enabled {
		c.logger.Infof("Hardware disabled in config, actuation is a no-op")
		return nil
	}
	bus, err := hardware.OpenPCA9685(hardware.Config{
		Bus:          hw.I2CBus,
		Address:      hw.Address,
		PWMFrequency: hw.PWMFrequency,
	}, c.logger.WithField("component", "hardware"))
	if err != nil {
		c.logger.Warnf("PWM board unavailable, continuing without actuation: %s", xerrors.Sprint(err))
		return nil
	}
	c.bus = bus
	return bus
}

// wire connects the interpreter, hover loop and runtime options to the broker.
func (c *controller) wire() {
	c.interpreter.AddListener(motion.ListenerFuncs{
		Position: func(v motion.ControlVector) {
			if err := c.actuator.Update(v); err != nil {
				c.logger.Warnf("Actuation update dropped: %v", err)
			}
			if err := c.broker.PublishData(broker.EventPosition, v); err != nil {
				c.logger.Warnf("Failed to publish position: %v", err)
			}
		},
		ControlSet:   c.hover.Start,
		ControlUnset: c.hover.Stop,
	})

	c.runtime.OnChange(func(o services.RuntimeOptions) {
		if err := c.interpreter.SetOptions(o.Options); err != nil {
			c.logger.Errorf("Interpreter rejected runtime options: %v", err)
		}
		c.hover.SetGains(o.PID)
	})
	c.runtime.OnHover(func(on bool) {
		if on {
			c.hover.Start()
		} else {
			c.hover.Stop()
		}
	})
	c.runtime.SetPublisher(c.broker)

	c.broker.Register(broker.EventConfig, c.runtime.HandleConfigEvent)
	c.broker.Register(broker.EventDroneSync, actuation.SyncHandler(c.actuator, func() int {
		return c.runtime.Current().Quad
	}, c.logger.WithField("component", "actuation")))
	c.broker.Register(broker.EventPosition, c.hover.HandlePosition)
}

func (c *controller) newDiagnostics() *diagnostic.DiagnosticService {
	d := diagnostic.NewDiagnosticService()
	d.Register("broker", func() interface{} {
		return fiber.Map{"peers": c.broker.PeerCount(), "events": c.broker.Stats()}
	})
	d.Register("actuation", func() interface{} {
		return fiber.Map{
			"enabled":     c.actuator.Enabled(),
			"position":    c.actuator.CurrentPosition(),
			"syncPhase":   c.actuator.SyncPhase(),
			"queueLength": c.actuator.QueueLength(),
			"pool":        c.actuator.Metrics(),
		}
	})
	d.Register("motion", func() interface{} {
		return fiber.Map{"options": c.interpreter.Options(), "gesture": c.interpreter.GestureState()}
	})
	d.Register("hover", func() interface{} { return c.hover.Status() })
	d.Register("sensor", func() interface{} {
		return fiber.Map{"connected": c.sensor.Connected(), "frames": c.sensor.FramesReceived()}
	})
	d.Register("zeromq", func() interface{} {
		return fiber.Map{"enabled": c.zmq != nil, "publishing": c.zmq != nil && c.zmq.CanPublish()}
	})
	return d
}

// routes mounts the HTTP and WebSocket surface on app.
func (c *controller) routes(app *fiber.App) {
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(api.StatusResponse{Status: "online", Service: "leapdrone controller"})
	})
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(api.StatusResponse{Status: "healthy"})
	})

	apiGroup := app.Group("/api")
	apiGroup.Get("/diagnostics", c.diagnostics.GetMetricsHandler)

	api.RegisterConfigRoutes(app, c.runtime, c.logger.WithField("component", "api"))
	api.RegisterEventRoutes(app, c.cfg.Server.WSPath, c.broker, c.logger.WithField("component", "api"))
}

// start begins serving ZeroMQ requests and reading the sensor.
func (c *controller) start(ctx context.Context) error {
	if c.zmq != nil {
		if err := c.zmq.Start(); err != nil {
			return fmt.Errorf("failed to start ZeroMQ service: %w", err)
		}
	}
	go func() {
		_ = c.sensor.Run(ctx)
		c.logger.Infof("Leap client stopped")
	}()
	return nil
}

// shutdown stops every input path, then zeroes every channel before
// releasing the board.
func (c *controller) shutdown() {
	c.hover.Stop()
	c.broker.Close()
	if c.zmq != nil {
		c.zmq.Stop()
	}
	if err := c.actuator.Shutdown(); err != nil {
		c.logger.Errorf("Actuator shutdown: %v", err)
	}
	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			c.logger.Errorf("Closing PWM board: %v", err)
		}
	}
}
