package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	hatchbridge "github.com/nerrad567/hatch-bridge/internal/bridges/hatch"
	"github.com/nerrad567/hatch-bridge/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxQueryParamLen    = 128
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - generation: filter by hardware generation (legacy, iot)
//   - health: filter by health status (online, offline, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if generation := r.URL.Query().Get("generation"); generation != "" {
		devices, err := s.registry.GetDevicesByGeneration(ctx, generation)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if healthStr := r.URL.Query().Get("health"); healthStr != "" {
		devices, err := s.registry.GetDevicesByHealthStatus(ctx, device.HealthStatus(healthStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	// No filter: return all devices
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, stats)
}

// handleGetDeviceState returns the current projected state of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":     dev.ID,
		"state":         dev.State,
		"updated_at":    dev.UpdatedAt,
		"last_seen_at":  dev.LastSeenAt,
		"health_status": dev.HealthStatus,
	})
}

// handleGetDeviceHistory returns state history entries for a device.
//
// Query parameters:
//   - limit: maximum entries to return (default 50, max 200)
//   - since: RFC3339 timestamp; only entries after it are returned
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "id")
	if deviceID == "" || len(deviceID) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if _, err := s.registry.GetDevice(ctx, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if s.stateHistory == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	entries, err := s.stateHistory.GetHistory(ctx, deviceID, limit)
	if err != nil {
		writeInternalError(w, "failed to load device history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.RecordedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"history":   entries,
		"count":     len(entries),
	})
}

// DeviceCommand represents a command to send to a device via MQTT.
type DeviceCommand struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleDeviceCommand publishes a command to the bridge command topic.
// This is an asynchronous operation — the command is published to MQTT and
// the response is 202 Accepted. The resulting state change (or failure ack)
// arrives via WebSocket and the ack topic.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the device exists before forwarding anything
	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var cmd DeviceCommand
	if decodeErr := json.NewDecoder(r.Body).Decode(&cmd); decodeErr != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}

	if s.mqtt == nil || !s.mqtt.IsConnected() {
		writeUnavailable(w, "message bus unavailable")
		return
	}

	msg := hatchbridge.CommandMessage{
		ID:         generateRequestID(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   id,
		Command:    cmd.Command,
		Parameters: cmd.Parameters,
		Source:     "api",
	}

	payload, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		writeInternalError(w, "failed to encode command")
		return
	}

	topic := s.topics.BridgeCommand(hatchbridge.Protocol, id)
	if pubErr := s.mqtt.Publish(topic, payload, 1, false); pubErr != nil {
		s.logger.Warn("command publish failed", "device_id", id, "error", pubErr)
		writeUnavailable(w, "failed to publish command")
		return
	}

	s.logger.Info("device command sent",
		"device_id", id,
		"command", cmd.Command,
		"parameters", cmd.Parameters,
		"command_id", msg.ID,
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": msg.ID,
		"status":     "accepted",
		"message":    "command published, state update will follow via WebSocket",
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.UTC(), nil
}
