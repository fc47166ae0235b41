// Package leap reads hand frames from the Leap Motion service websocket.
package leap

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leapdrone/controller/domain/motion"
)

type wireFrame struct {
	ID         int64           `json:"id"`
	Timestamp  int64           `json:"timestamp"`
	Hands      []wireHand      `json:"hands"`
	Pointables []wirePointable `json:"pointables"`
}

type wireHand struct {
	ID           int       `json:"id"`
	Type         string    `json:"type"`
	PalmPosition []float64 `json:"palmPosition"`
}

type wirePointable struct {
	ID          int       `json:"id"`
	HandID      int       `json:"handId"`
	Type        int       `json:"type"`
	Tool        bool      `json:"tool"`
	Extended    bool      `json:"extended"`
	MCPPosition []float64 `json:"mcpPosition"`
	PIPPosition []float64 `json:"pipPosition"`
	DIPPosition []float64 `json:"dipPosition"`
	TipPosition []float64 `json:"tipPosition"`
}

// DecodeFrame converts one service message into a Frame stamped with
// received. ok is false for messages that are not frames, such as the
// version handshake.
func DecodeFrame(data []byte, received time.Time) (frame motion.Frame, ok bool, err error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return motion.Frame{}, false, fmt.Errorf("failed to decode leap message: %w", err)
	}
	if w.Hands == nil && w.Pointables == nil {
		return motion.Frame{}, false, nil
	}

	frame = motion.Frame{ID: w.ID, Timestamp: received, Hands: make([]motion.Hand, 0, len(w.Hands))}
	index := make(map[int]int, len(w.Hands))
	for _, h := range w.Hands {
		side, known := parseSide(h.Type)
		if !known {
			continue
		}
		index[h.ID] = len(frame.Hands)
		frame.Hands = append(frame.Hands, motion.Hand{
			ID:      h.ID,
			Side:    side,
			Palm:    vec(h.PalmPosition),
			Fingers: make([]motion.Finger, 0, 5),
		})
	}

	for _, p := range w.Pointables {
		if p.Tool || p.Type < int(motion.Thumb) || p.Type > int(motion.Pinky) {
			continue
		}
		i, found := index[p.HandID]
		if !found {
			continue
		}
		frame.Hands[i].Fingers = append(frame.Hands[i].Fingers, motion.Finger{
			Type:     motion.FingerType(p.Type),
			Extended: p.Extended,
			MCP:      vec(p.MCPPosition),
			PIP:      vec(p.PIPPosition),
			DIP:      vec(p.DIPPosition),
			Tip:      vec(p.TipPosition),
		})
	}
	return frame, true, nil
}

func parseSide(s string) (motion.Side, bool) {
	switch s {
	case "left":
		return motion.SideLeft, true
	case "right":
		return motion.SideRight, true
	default:
		return "", false
	}
}

func vec(a []float64) motion.Vector3 {
	if len(a) < 3 {
		return motion.Vector3{}
	}
	return motion.Vector3{X: a[0], Y: a[1], Z: a[2]}
}
