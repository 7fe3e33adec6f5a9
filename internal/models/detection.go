package models

// PredictOptions are forwarded to the inference service with each request.
type PredictOptions struct {
	Threshold      float64 `json:"threshold"`
	IncludeOverlay bool    `json:"include_overlay"`
}

// ClassScore is one class probability from the inference response.
type ClassScore struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// PredictionResult is the normalized anomaly detection result returned to
// API clients regardless of how the inference backend shapes its response.
type PredictionResult struct {
	AnomalyScore    float64      `json:"anomaly_score"`
	IsAnomaly       bool         `json:"is_anomaly"`
	PredictedClass  string       `json:"predicted_class"`
	ThresholdUsed   float64      `json:"threshold_used"`
	Predictions     []ClassScore `json:"predictions,omitempty"`
	Overlay         string       `json:"overlay,omitempty"`
	InferenceTimeMS int64        `json:"inference_time_ms"`

	// Base64 JPEG of the captured frame, set by camera capture endpoints.
	Image string `json:"image,omitempty"`
}
