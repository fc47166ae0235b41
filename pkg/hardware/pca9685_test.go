package hardware

import (
	"strings"
	"testing"

	"github.com/mdobak/go-xerrors"
)

type pwmCall struct {
	channel int
	on, off uint16
}

type fakeDriver struct {
	calls  []pwmCall
	halted bool
}

func (d *fakeDriver) SetPWM(channel int, on uint16, off uint16) error {
	d.calls = append(d.calls, pwmCall{channel: channel, on: on, off: off})
	return nil
}

func (d *fakeDriver) Halt() error {
	d.halted = true
	return nil
}

func TestDutyToTicks(t *testing.T) {
	tests := []struct {
		f    float64
		want uint16
	}{
		{0, 0},
		{0.5, 2048},
		{1, 4095},
		{-0.2, 0},
		{1.7, 4095},
	}
	for _, tt := range tests {
		if got := dutyToTicks(tt.f); got != tt.want {
			t.Errorf("dutyToTicks(%v) = %d, expected %d", tt.f, got, tt.want)
		}
	}
}

func TestBusWritesDutyAndZeroPulse(t *testing.T) {
	d := &fakeDriver{}
	b := newPCA9685Bus(d, nil)

	if err := b.SetChannelDutyCycle(3, 1); err != nil {
		t.Fatalf("SetChannelDutyCycle failed: %v", err)
	}
	if err := b.ZeroChannel(3); err != nil {
		t.Fatalf("ZeroChannel failed: %v", err)
	}

	if len(d.calls) != 2 {
		t.Fatalf("Expected 2 driver calls, got %d", len(d.calls))
	}
	if d.calls[0] != (pwmCall{channel: 3, on: 0, off: 4095}) {
		t.Errorf("Unexpected duty write: %+v", d.calls[0])
	}
	if d.calls[1] != (pwmCall{channel: 3, on: 0, off: fullOff}) {
		t.Errorf("Unexpected zero write: %+v", d.calls[1])
	}
}

func TestBusRejectsBadChannelAndClosed(t *testing.T) {
	d := &fakeDriver{}
	b := newPCA9685Bus(d, nil)

	if err := b.SetChannelDutyCycle(16, 0.5); err == nil {
		t.Errorf("Expected error for channel 16")
	}
	if err := b.Close(); err != nil || !d.halted {
		t.Fatalf("Expected halt on close, err=%v", err)
	}
	if err := b.ZeroChannel(0); err == nil {
		t.Errorf("Expected error after close")
	}
	if len(d.calls) != 0 {
		t.Errorf("Expected no driver writes, got %v", d.calls)
	}
}

func TestOpenFailureCarriesStack(t *testing.T) {
	_, err := OpenPCA9685(Config{Bus: 250, Address: 0x40}, nil)
	if err == nil {
		t.Skip("an i2c bus 250 exists on this host")
	}
	detail := xerrors.Sprint(err)
	if !strings.Contains(detail, err.Error()) {
		t.Errorf("Expected detail to include the message, got %q", detail)
	}
	if !strings.Contains(detail, "pca9685.go") {
		t.Errorf("Expected detail to include the open call site, got %q", detail)
	}
}
