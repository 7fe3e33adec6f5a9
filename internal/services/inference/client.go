package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pivision/internal/config"
	"pivision/internal/logging"
	"pivision/internal/models"
)

// Client talks to the Anomalib TorchServe container over HTTP. Remote
// deployments can cold-start, hence the long predict timeout.
type Client struct {
	baseURL    string
	predictURL string
	healthURL  string

	httpClient *http.Client
	pingClient *http.Client
	log        zerolog.Logger
}

// Health is the result of a TorchServe ping.
type Health struct {
	Healthy bool   `json:"healthy"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewClient(cfg *config.Config) *Client {
	base := cfg.PredictionServiceURL
	return &Client{
		baseURL:    base,
		predictURL: base + "/predictions/model",
		healthURL:  base + "/ping",
		httpClient: &http.Client{Timeout: cfg.PredictTimeout},
		pingClient: &http.Client{Timeout: cfg.PingTimeout},
		log:        logging.NewServiceLogger(cfg, "inference"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckHealth pings TorchServe. It never returns an error; unreachable
// services are reported as unhealthy.
func (c *Client) CheckHealth(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	resp, err := c.pingClient.Do(req)
	if err != nil {
		return Health{Healthy: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return Health{
		Healthy: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
	}
}

// predictPayload matches the TorchServe handler's expected request format.
type predictPayload struct {
	Data           string      `json:"data"`
	Threshold      float64     `json:"threshold"`
	IncludeOverlay bool        `json:"include_overlay"`
	ImageSize      interface{} `json:"image_size"` // always null, no preprocessing
}

// rawResponse mirrors the TorchServe handler's response shape.
type rawResponse struct {
	PredictedClass string              `json:"predicted_class"`
	Threshold      float64             `json:"threshold"`
	Predictions    []models.ClassScore `json:"predictions"`
	Overlay        string              `json:"overlay"`
}

// Predict sends a JPEG/PNG buffer for anomaly scoring and normalizes the
// response.
func (c *Client) Predict(ctx context.Context, image []byte, opts models.PredictOptions) (*models.PredictionResult, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	c.log.Debug().Int("base64_len", len(encoded)).Msg("image encoded for prediction")

	body, err := json.Marshal(predictPayload{
		Data:           encoded,
		Threshold:      opts.Threshold,
		IncludeOverlay: opts.IncludeOverlay,
	})
	if err != nil {
		return nil, fmt.Errorf("encode prediction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().
		Str("url", c.predictURL).
		Float64("threshold", opts.Threshold).
		Bool("overlay", opts.IncludeOverlay).
		Msg("sending prediction request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.predictURL).Msg("prediction request failed")
		return nil, fmt.Errorf("cannot reach inference service at %s: %w", c.predictURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference service error (%d): %s", resp.StatusCode, string(respBody))
	}

	result, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	result.InferenceTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// parseResponse normalizes the TorchServe response, which may arrive as a
// bare object or wrapped in a single-element array.
func parseResponse(body []byte) (*models.PredictionResult, error) {
	trimmed := bytes.TrimSpace(body)

	var raw rawResponse
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []rawResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode prediction response: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("empty prediction response")
		}
		raw = list[0]
	} else if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}

	var anomalyScore float64
	for _, p := range raw.Predictions {
		if p.Class == "anomalous" {
			anomalyScore = p.Probability
			break
		}
	}

	return &models.PredictionResult{
		AnomalyScore:   anomalyScore,
		IsAnomaly:      raw.PredictedClass == "anomalous",
		PredictedClass: raw.PredictedClass,
		ThresholdUsed:  raw.Threshold,
		Predictions:    raw.Predictions,
		Overlay:        raw.Overlay,
	}, nil
}
