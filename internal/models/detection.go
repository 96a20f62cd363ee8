package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DetectionBox is one detected object. Coordinates are the top-left and
// bottom-right corners in pixels; Confidence is a percentage (0-100).
type DetectionBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetectionPayload is the structured result stored with a history record
type DetectionPayload struct {
	Detections     []DetectionBox `json:"detections"`
	ProcessingTime float64        `json:"processing_time"`
}

// DetectionHistory is a persisted detection result owned by one user
type DetectionHistory struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"-" db:"user_id"`
	ImagePath        string    `json:"image_path" db:"image_path"`
	ImageKey         string    `json:"-" db:"image_key"`
	StorageBackend   string    `json:"-" db:"storage_backend"`
	DetectionResults string    `json:"detection_results" db:"detection_results"` // JSON storage
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// MarshalPayload encodes detections and processing time into DetectionResults
func (h *DetectionHistory) MarshalPayload(detections []DetectionBox, processingTime float64) error {
	if detections == nil {
		detections = []DetectionBox{}
	}
	data, err := json.Marshal(DetectionPayload{
		Detections:     detections,
		ProcessingTime: processingTime,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal detection payload: %w", err)
	}
	h.DetectionResults = string(data)
	return nil
}

// Payload decodes DetectionResults
func (h *DetectionHistory) Payload() (*DetectionPayload, error) {
	var p DetectionPayload
	if h.DetectionResults == "" {
		return &DetectionPayload{Detections: []DetectionBox{}}, nil
	}
	if err := json.Unmarshal([]byte(h.DetectionResults), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection payload: %w", err)
	}
	return &p, nil
}
