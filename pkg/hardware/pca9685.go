package hardware

import (
	"fmt"
	"math"
	"sync"

	"github.com/mdobak/go-xerrors"
	"gobot.io/x/gobot/drivers/i2c"
	"gobot.io/x/gobot/sysfs"

	customlog "github.com/leapdrone/controller/pkg/log"
)

// PCA9685 register limits.
const (
	pwmResolution = 4096
	// fullOff sets the FULL_OFF bit of LEDn_OFF_H, holding the output low.
	fullOff = 4096
	// channelCount is the number of outputs on one board.
	channelCount = 16
)

// Config locates the board.
type Config struct {
	Bus          int
	Address      int
	PWMFrequency float64
}

// pwmDriver is the subset of the gobot driver the bus uses.
type pwmDriver interface {
	SetPWM(channel int, on uint16, off uint16) error
	Halt() error
}

// PCA9685Bus drives a PCA9685 PWM board over I2C.
type PCA9685Bus struct {
	driver pwmDriver
	logger customlog.Logger
	mu     sync.Mutex
	closed bool
}

// OpenPCA9685 starts the board on /dev/i2c-<bus> and sets its frequency.
func OpenPCA9685(cfg Config, logger customlog.Logger) (*PCA9685Bus, error) {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	conn := &sysfsConnector{defaultBus: cfg.Bus}
	driver := i2c.NewPCA9685Driver(conn, i2c.WithBus(cfg.Bus), i2c.WithAddress(cfg.Address))
	if err := driver.Start(); err != nil {
		return nil, xerrors.New(fmt.Errorf("failed to start PCA9685 on bus %d address 0x%02x: %w", cfg.Bus, cfg.Address, err))
	}
	if cfg.PWMFrequency > 0 {
		if err := driver.SetPWMFreq(float32(cfg.PWMFrequency)); err != nil {
			_ = driver.Halt()
			return nil, xerrors.New(fmt.Errorf("failed to set PCA9685 frequency %.1fHz: %w", cfg.PWMFrequency, err))
		}
	}
	logger.Infof("PCA9685 ready on bus %d address 0x%02x at %.1fHz", cfg.Bus, cfg.Address, cfg.PWMFrequency)
	return newPCA9685Bus(driver, logger), nil
}

func newPCA9685Bus(driver pwmDriver, logger customlog.Logger) *PCA9685Bus {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &PCA9685Bus{driver: driver, logger: logger}
}

// SetChannelDutyCycle writes f, clamped to [0,1], as the off tick of channel.
func (b *PCA9685Bus) SetChannelDutyCycle(channel int, f float64) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("PCA9685 bus closed")
	}
	return b.driver.SetPWM(channel, 0, dutyToTicks(f))
}

// ZeroChannel holds channel fully off.
func (b *PCA9685Bus) ZeroChannel(channel int) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("PCA9685 bus closed")
	}
	return b.driver.SetPWM(channel, 0, fullOff)
}

// Close stops every output and releases the driver.
func (b *PCA9685Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.driver.Halt()
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= channelCount {
		return fmt.Errorf("PCA9685 channel %d outside [0,%d)", channel, channelCount)
	}
	return nil
}

// dutyToTicks converts a duty cycle to the 12-bit off counter.
func dutyToTicks(f float64) uint16 {
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return uint16(math.Round(f * (pwmResolution - 1)))
}

// sysfsConnector opens /dev/i2c-N devices for the gobot driver.
type sysfsConnector struct {
	defaultBus int
}

func (c *sysfsConnector) GetConnection(address int, bus int) (i2c.Connection, error) {
	device, err := sysfs.NewI2cDevice(fmt.Sprintf("/dev/i2c-%d", bus))
	if err != nil {
		return nil, err
	}
	return i2c.NewConnection(device, address), nil
}

func (c *sysfsConnector) GetDefaultBus() int {
	return c.defaultBus
}
