// Package openhab renders openHAB item and thing definitions for a sensor
// catalogue, so the gateway's MQTT topics can be bound without writing
// the definitions by hand.
//
// Items (one per sensor, preceded by the group declarations):
//
//	Number solar_vpv1 "PV1 Voltage [%.1f [V]]"  (gSolar) { channel="mqtt:topic:mq:solar:vpv1" }
//
// Thing (one channel per sensor):
//
//	Thing mqtt:topic:mq:solar "Solar" (mqtt:broker:mq) @ "roof" {
//	    Channels:
//
//	        Type number : vpv1 "PV1 Voltage [V]" [ stateTopic="solar/vpv1" ]
//	}
package openhab
