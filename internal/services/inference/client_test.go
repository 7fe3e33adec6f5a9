package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivision/internal/config"
	"pivision/internal/models"
)

func newTestClient(url string) *Client {
	return NewClient(&config.Config{
		StationID:            "station-test",
		PredictionServiceURL: url,
		PredictTimeout:       5 * time.Second,
		PingTimeout:          2 * time.Second,
	})
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	health := newTestClient(srv.URL).CheckHealth(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, http.StatusOK, health.Status)
}

func TestCheckHealthUnreachable(t *testing.T) {
	health := newTestClient("http://127.0.0.1:1").CheckHealth(context.Background())
	assert.False(t, health.Healthy)
	assert.NotEmpty(t, health.Error)
}

func TestPredict(t *testing.T) {
	image := []byte("\xff\xd8jpeg\xff\xd9")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predictions/model", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), payload["data"])
		assert.Equal(t, 0.7, payload["threshold"])
		assert.Equal(t, true, payload["include_overlay"])
		assert.Nil(t, payload["image_size"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"predicted_class": "anomalous",
			"threshold":       0.7,
			"predictions": []map[string]interface{}{
				{"class": "normal", "probability": 0.1},
				{"class": "anomalous", "probability": 0.9},
			},
			"overlay": "b64overlay",
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Predict(context.Background(), image, models.PredictOptions{
		Threshold:      0.7,
		IncludeOverlay: true,
	})
	require.NoError(t, err)
	assert.True(t, result.IsAnomaly)
	assert.Equal(t, "anomalous", result.PredictedClass)
	assert.Equal(t, 0.9, result.AnomalyScore)
	assert.Equal(t, 0.7, result.ThresholdUsed)
	assert.Equal(t, "b64overlay", result.Overlay)
}

func TestPredictArrayWrappedResponse(t *testing.T) {
	// TorchServe batch handlers wrap the result in a single-element array.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{{
			"predicted_class": "normal",
			"threshold":       0.5,
			"predictions": []map[string]interface{}{
				{"class": "normal", "probability": 0.95},
				{"class": "anomalous", "probability": 0.05},
			},
		}})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Predict(context.Background(), []byte("img"), models.PredictOptions{Threshold: 0.5})
	require.NoError(t, err)
	assert.False(t, result.IsAnomaly)
	assert.Equal(t, 0.05, result.AnomalyScore)
}

func TestPredictServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Predict(context.Background(), []byte("img"), models.PredictOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
