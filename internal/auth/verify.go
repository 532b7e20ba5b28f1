package auth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/al-bashkir/postnl-go/internal/logsanitize"
	"github.com/al-bashkir/postnl-go/internal/session"
)

// bundledSensorData is an opaque browser fingerprint blob. The provider checks
// the payload's shape, not its content, so it is shipped as is.
//
//go:embed sensordata.txt
var bundledSensorData string

type sensorPayload struct {
	SensorData string `json:"sensor_data"`
}

type verificationResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// loadSensorData returns the blob from path, or the bundled one when path is empty.
func loadSensorData(path string) (string, error) {
	if path == "" {
		return strings.TrimSpace(bundledSensorData), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return "", fmt.Errorf("failed to read sensor data file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// buildSensorPayload embeds a random nonce in front of the sensor data blob.
func buildSensorPayload(sensorData string) ([]byte, error) {
	nonce, err := HexRandom(sensorNonceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sensor nonce: %w", err)
	}
	return json.Marshal(sensorPayload{SensorData: "'" + nonce + "'" + sensorData})
}

// verify posts the sensor data to the scraped static path. On success the
// provider marks the session cookie as verified; nothing is returned for reuse.
func (f *flow) verify(ctx context.Context, staticPath string) error {
	payload, err := buildSensorPayload(f.sensorData)
	if err != nil {
		return err
	}

	resp, err := f.sess.PostJSON(ctx, f.endpoints.resolve(staticPath), payload)
	if err != nil {
		return networkError(err)
	}

	body, err := session.ReadBody(resp)
	if err != nil {
		return networkError(err)
	}

	var result verificationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return decodeError(err)
	}

	if !result.Success {
		reason := "no error provided"
		if result.Error != nil && *result.Error != "" {
			reason = *result.Error
		}
		slog.Warn("bot verification rejected", "reason", logsanitize.Sanitize(reason))
		return &Error{Kind: KindVerification, Reason: reason}
	}

	return nil
}
