// Package ccu is the boundary to the Homematic CCU controller.
//
// It provides two collaborators consumed by the telemetry pipeline:
//
//   - EventSource: the live push stream of datapoint state changes. The
//     production implementation (MQTTSource) receives events over MQTT from
//     a CCU-side publisher, one topic subtree per controller interface.
//   - Directory: resolves datapoint addresses to device/channel/room display
//     metadata and polls Rega objects (system variables and programs). The
//     production implementation (RegaClient) talks plain HTTP to the CCU's
//     Rega script endpoint.
//
// Datapoint addresses use the full Homematic form
//
//	IFACE.SERIAL:CHANNEL.DATAPOINT
//
// for example "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY". Whitelist patterns in the
// pipeline match against this full form.
//
// Directory fetches are cached after the first call until ClearCache is
// invoked; lookups against a cold cache miss gracefully so the pipeline can
// accept events before the device directory has loaded.
package ccu
