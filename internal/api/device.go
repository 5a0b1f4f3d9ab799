package api

import (
	"context"
	"encoding/json"
	"fmt"

	"xtherma_bridge/internal/types"
)

// GetDevice retrieves the full settings and telemetry document of the device.
func (c *APIClient) GetDevice(ctx context.Context) (*types.DeviceDocument, error) {
	data, err := c.doRequest(ctx, "GET", "/"+c.serial)
	if err != nil {
		return nil, err
	}

	var doc types.DeviceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal device: %v", types.ErrGeneral, err)
	}

	return &doc, nil
}

// Poll returns settings followed by telemetry as raw readings.
func (c *APIClient) Poll(ctx context.Context) ([]types.Reading, error) {
	doc, err := c.GetDevice(ctx)
	if err != nil {
		return nil, err
	}

	if doc.SerialNumber != "" && doc.SerialNumber != c.serial {
		c.logger.Warn("Serial number mismatch", "configured", c.serial, "reported", doc.SerialNumber)
	}

	readings := doc.Readings()
	c.logger.Debug("Device document received", "settings", len(doc.Settings), "telemetry", len(doc.Telemetry))

	return readings, nil
}
