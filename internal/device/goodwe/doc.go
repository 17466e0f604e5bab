// Package goodwe implements device.Connector for GoodWe hybrid inverters.
//
// The inverter answers Modbus-RTU requests wrapped in UDP datagrams on
// port 8899. The client reads two register blocks:
//
//   - device info (35000, 33 registers): model name and serial number,
//     read once on connect to confirm the device is reachable
//   - runtime data (35100, 125 registers): decoded into a snapshot
//     according to a sensor table
//
// # Frame Format
//
//	request:  addr(1) 0x03 register(2) count(2) crc(2, little-endian)
//	response: 0xAA 0x55 addr(1) 0x03 len(1) data(len) crc(2, little-endian)
//
// The response CRC covers everything from the address byte up to the data.
//
// # Sensor Tables
//
// Sensor layout is data, not code. The default ET-family table is embedded
// (sensors_et.yaml); Config.SensorTable points at a replacement file with
// the same schema for other families or firmware variants.
//
// # Thread Safety
//
// A Session serialises its own requests; the UDP socket is never shared
// between in-flight reads.
package goodwe
