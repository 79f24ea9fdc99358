package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceQuantity writes a single heat-recovery-unit measurement.
//
// This is the primary method for recording unit telemetry sampled from
// the Modbus register map. The write is non-blocking; data is batched
// and sent asynchronously.
//
// Parameters:
//   - quantity: The sampled quantity ("power", "mode", "temperature")
//   - value: The numeric value in engineering units
//
// Example:
//
//	client.WriteDeviceQuantity("temperature", 22.0)
//	client.WriteDeviceQuantity("power", 65.0)
func (c *Client) WriteDeviceQuantity(quantity string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"hru_state",
		map[string]string{
			"quantity": quantity,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteValvePosition writes a valve position measurement.
//
// Used for tracking per-room airflow valve positions as reported by
// the upstream Home Assistant entities.
//
// Parameters:
//   - entityID: Full entity identifier (e.g., "number.luftator_supply_living")
//   - value: Current valve position
func (c *Client) WriteValvePosition(entityID string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"valve_position",
		map[string]string{
			"entity_id": entityID,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRuleApplied records a schedule rule application event.
//
// Each point marks the moment a rule won selection and its targets were
// pushed to the device. Failed applications are recorded with success=false
// so rule reliability can be graphed over time.
//
// Parameters:
//   - ruleID: Identifier of the applied rule
//   - ruleName: Human-readable rule name (low cardinality expected)
//   - success: Whether every target write succeeded
func (c *Client) WriteRuleApplied(ruleID string, ruleName string, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rule_applied",
		map[string]string{
			"rule_id":   ruleID,
			"rule_name": ruleName,
		},
		map[string]interface{}{
			"success": success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
