package mqtt

import "fmt"

// Topic prefixes for the Luftujha MQTT namespace.
//
// All topics live under a single root so a consumer can follow the whole
// add-on with one wildcard subscription: luftujha/#
const (
	// TopicPrefix is the root of all Luftujha topics.
	TopicPrefix = "luftujha"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "luftujha/system"

	// TopicPrefixTelemetry is the base for telemetry topics.
	TopicPrefixTelemetry = "luftujha/telemetry"
)

// Topics provides builders for Luftujha MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: luftujha/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DeviceQuantity returns the telemetry topic for one HRU quantity.
//
// Example: luftujha/telemetry/device/power
func (Topics) DeviceQuantity(quantity string) string {
	return fmt.Sprintf("%s/device/%s", TopicPrefixTelemetry, quantity)
}

// ValveValue returns the telemetry topic for one valve entity.
//
// Example: luftujha/telemetry/valve/number.luftator_bedroom
func (Topics) ValveValue(entityID string) string {
	return fmt.Sprintf("%s/valve/%s", TopicPrefixTelemetry, entityID)
}

// RuleApplied returns the topic for scheduler rule application events.
//
// Example: luftujha/schedule/applied
func (Topics) RuleApplied() string {
	return fmt.Sprintf("%s/schedule/applied", TopicPrefix)
}

// AllTelemetry returns a pattern matching all telemetry topics.
//
// Pattern: luftujha/telemetry/#
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/#", TopicPrefixTelemetry)
}
