package zeromq

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/flatbuffers/leapdrone"
)

// minFrameSize is the root offset plus the smallest possible vtable.
const minFrameSize = 8

// EncodeControlFrame serializes v as a ControlFrame flatbuffer.
func EncodeControlFrame(v motion.ControlVector, at time.Time) []byte {
	builder := flatbuffers.NewBuilder(96)

	controller := leapdrone.ControllerBanked
	if v.MetaData != nil && v.MetaData.Controller == motion.Translational {
		controller = leapdrone.ControllerTranslational
	}

	leapdrone.ControlFrameStart(builder)
	leapdrone.ControlFrameAddRoll(builder, v.Roll)
	leapdrone.ControlFrameAddPitch(builder, v.Pitch)
	leapdrone.ControlFrameAddYaw(builder, v.Yaw)
	leapdrone.ControlFrameAddThrottle(builder, v.Throttle)
	leapdrone.ControlFrameAddQuad(builder, int32(v.Quad))
	leapdrone.ControlFrameAddController(builder, controller)
	leapdrone.ControlFrameAddTimestampNs(builder, at.UnixNano())
	frame := leapdrone.ControlFrameEnd(builder)
	leapdrone.FinishControlFrameBuffer(builder, frame)

	return builder.FinishedBytes()
}

// DecodeControlFrame reads a ControlFrame. Sensitivity is not carried on the
// wire, so the returned metadata only names the controller.
func DecodeControlFrame(buf []byte) (v motion.ControlVector, at time.Time, err error) {
	if len(buf) < minFrameSize {
		return v, at, fmt.Errorf("%w: control frame of %d bytes", ErrInvalidMessage, len(buf))
	}
	// the flatbuffers runtime panics on out-of-range offsets
	defer func() {
		if r := recover(); r != nil {
			v, at = motion.ControlVector{}, time.Time{}
			err = fmt.Errorf("%w: corrupt control frame: %v", ErrInvalidMessage, r)
		}
	}()

	frame := leapdrone.GetRootAsControlFrame(buf, 0)
	controller := motion.Banked
	if frame.Controller() == leapdrone.ControllerTranslational {
		controller = motion.Translational
	}
	v = motion.ControlVector{
		Roll:     frame.Roll(),
		Pitch:    frame.Pitch(),
		Yaw:      frame.Yaw(),
		Throttle: frame.Throttle(),
		Quad:     int(frame.Quad()),
		MetaData: &motion.MetaData{Controller: controller},
	}
	return v, time.Unix(0, frame.TimestampNs()), nil
}
