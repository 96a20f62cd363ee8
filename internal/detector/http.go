package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pixeon-io/pixeon/internal/models"
)

// HTTPModel delegates inference to an external model service that accepts a
// multipart "file" on /predict and answers with raw detections.
type HTTPModel struct {
	baseURL string
	client  *http.Client
}

// rawDetection is the service's wire format. Confidence is 0-1.
type rawDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// HTTPLoader returns a LoadFunc that probes baseURL/health before handing
// out the model.
func HTTPLoader(baseURL string, timeout time.Duration) LoadFunc {
	return func(ctx context.Context) (Model, error) {
		m := &HTTPModel{
			baseURL: strings.TrimRight(baseURL, "/"),
			client:  &http.Client{Timeout: timeout},
		}
		if err := m.CheckHealth(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// CheckHealth checks that the model service is reachable
func (m *HTTPModel) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("model service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Predict posts the image to the service and converts confidences to
// percentages rounded to two decimals.
func (m *HTTPModel) Predict(ctx context.Context, imagePath string) ([]models.DetectionBox, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []rawDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	boxes := make([]models.DetectionBox, 0, len(result.Detections))
	for _, d := range result.Detections {
		boxes = append(boxes, models.DetectionBox{
			X1:         d.X1,
			Y1:         d.Y1,
			X2:         d.X2,
			Y2:         d.Y2,
			Label:      d.Label,
			Confidence: Round2(d.Confidence * 100),
		})
	}
	return boxes, nil
}

// Round2 rounds v to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
