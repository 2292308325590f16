// Package notify forwards critical incidents to the push gateway over MQTT.
//
// The notifier listens on the event bus and is fire-and-forget: a broker
// outage is logged and counted, and never reaches the device that reported
// the incident.
package notify
