package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every LedFx topic.
const TopicPrefix = "ledfx"

// Topics builds LedFx topic names.
type Topics struct{}

// SystemStatus is the retained online/offline topic, also used as LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceState is the retained activation state of a device.
//
// Example: ledfx/device/desk-strip/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// DisplayPixels carries raw RGB frames for a display.
//
// Example: ledfx/display/desk/pixels
func (Topics) DisplayPixels(displayID string) string {
	return fmt.Sprintf("%s/display/%s/pixels", TopicPrefix, displayID)
}

// DisplayEffect sets or clears a display's effect.
//
// Example: ledfx/display/desk/effect
func (Topics) DisplayEffect(displayID string) string {
	return fmt.Sprintf("%s/display/%s/effect", TopicPrefix, displayID)
}

// AudioVolume carries the current audio volume.
func (Topics) AudioVolume() string {
	return TopicPrefix + "/audio/volume"
}

// CommandScan triggers a discovery scan.
func (Topics) CommandScan() string {
	return TopicPrefix + "/command/scan"
}

// AllDisplayPixels matches DisplayPixels for every display.
func (Topics) AllDisplayPixels() string {
	return TopicPrefix + "/display/+/pixels"
}

// AllDisplayEffects matches DisplayEffect for every display.
func (Topics) AllDisplayEffects() string {
	return TopicPrefix + "/display/+/effect"
}

// DisplayID extracts the display id from a ledfx/display/{id}/... topic.
func (Topics) DisplayID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "display" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
