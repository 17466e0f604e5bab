package goodwe

import "errors"

// Domain errors for the GoodWe client.
var (
	// ErrInvalidResponse is returned when a response frame is malformed.
	ErrInvalidResponse = errors.New("goodwe: invalid response")

	// ErrChecksum is returned when a response CRC does not match.
	ErrChecksum = errors.New("goodwe: checksum mismatch")

	// ErrModbusException is returned when the inverter answers with an exception code.
	ErrModbusException = errors.New("goodwe: modbus exception")

	// ErrTimeout is returned when no valid response arrives within the retry budget.
	ErrTimeout = errors.New("goodwe: request timed out")

	// ErrUnknownSensorType is returned when a sensor table names an unsupported type.
	ErrUnknownSensorType = errors.New("goodwe: unknown sensor type")
)
