package actuation

import (
	"encoding/json"
	"fmt"

	customlog "github.com/leapdrone/controller/pkg/log"
)

// SyncRequest is the payload of a drone-sync event. A missing quad means
// the quad currently under control.
type SyncRequest struct {
	Quad *int `json:"quad,omitempty"`
}

// ParseSyncRequest decodes data and resolves the quad to sync.
func ParseSyncRequest(data json.RawMessage, defaultQuad int) (int, error) {
	if len(data) == 0 || string(data) == "null" {
		return defaultQuad, nil
	}
	var req SyncRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return 0, fmt.Errorf("failed to decode sync request: %w", err)
	}
	if req.Quad == nil {
		return defaultQuad, nil
	}
	return *req.Quad, nil
}

// SyncHandler returns a callback starting the sync sequence for each
// drone-sync event.
func SyncHandler(a Actuator, defaultQuad func() int, logger customlog.Logger) func(json.RawMessage) {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return func(data json.RawMessage) {
		quad, err := ParseSyncRequest(data, defaultQuad())
		if err != nil {
			logger.Warnf("Ignoring drone-sync: %v", err)
			return
		}
		if err := a.Sync(quad); err != nil {
			logger.Errorf("Sync of quad %d failed: %v", quad, err)
		}
	}
}
