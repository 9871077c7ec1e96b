// Package control exposes the engine over MQTT.
//
// A Bridge publishes device activation state and routes inbound
// messages to their owners: raw RGB frames and effect changes to
// displays, volume to the audio level and scan requests to discovery.
// It depends on small Publisher and Subscriber interfaces that
// *mqtt.Client satisfies.
package control
