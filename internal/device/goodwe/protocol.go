package goodwe

import (
	"encoding/binary"
	"fmt"
)

// Modbus constants.
const (
	// DefaultCommAddr is the Modbus slave address GoodWe inverters answer to over UDP.
	DefaultCommAddr byte = 0xF7

	// funcReadHolding is the Modbus "read holding registers" function code.
	funcReadHolding byte = 0x03

	// exceptionFlag is set on the function code of an exception response.
	exceptionFlag byte = 0x80

	// responseHeaderSize is AA 55 addr func len.
	responseHeaderSize = 5

	// crcSize is the trailing CRC16.
	crcSize = 2

	// maxRegisters is the largest register count one read may request.
	maxRegisters = 125
)

// Register blocks read by the client.
const (
	deviceInfoRegister uint16 = 35000
	deviceInfoCount    uint16 = 0x21

	runtimeRegister uint16 = 35100
	runtimeCount    uint16 = 0x7d
)

// responsePrefix opens every response frame from the inverter.
var responsePrefix = [2]byte{0xAA, 0x55}

// crc16 computes the CRC-16/MODBUS checksum of data.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// readRequest builds a "read holding registers" request frame.
//
// Parameters:
//   - addr: Modbus slave address (usually DefaultCommAddr)
//   - register: first register to read
//   - count: number of 16-bit registers (1..125)
//
// Returns:
//   - []byte: 8-byte request frame including CRC
func readRequest(addr byte, register, count uint16) []byte {
	frame := make([]byte, 6, 8) //nolint:mnd // addr+func+reg+count
	frame[0] = addr
	frame[1] = funcReadHolding
	binary.BigEndian.PutUint16(frame[2:4], register)
	binary.BigEndian.PutUint16(frame[4:6], count)
	return binary.LittleEndian.AppendUint16(frame, crc16(frame))
}

// parseReadResponse validates a response frame and returns its data bytes.
//
// Parameters:
//   - frame: raw datagram received from the inverter
//   - count: register count that was requested
//
// Returns:
//   - []byte: the register data (2*count bytes), a sub-slice of frame
//   - error: ErrInvalidResponse, ErrChecksum or ErrModbusException
func parseReadResponse(frame []byte, count uint16) ([]byte, error) {
	if len(frame) < responseHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidResponse, len(frame))
	}
	if frame[0] != responsePrefix[0] || frame[1] != responsePrefix[1] {
		return nil, fmt.Errorf("%w: bad prefix % X", ErrInvalidResponse, frame[0:2])
	}

	if frame[3]&exceptionFlag != 0 {
		return nil, fmt.Errorf("%w: function 0x%02X code 0x%02X", ErrModbusException, frame[3]&^exceptionFlag, frame[4])
	}
	if frame[3] != funcReadHolding {
		return nil, fmt.Errorf("%w: unexpected function 0x%02X", ErrInvalidResponse, frame[3])
	}

	n := int(frame[4])
	if n != int(count)*2 {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidResponse, n, int(count)*2)
	}
	if len(frame) < responseHeaderSize+n+crcSize {
		return nil, fmt.Errorf("%w: truncated (%d of %d bytes)", ErrInvalidResponse, len(frame), responseHeaderSize+n+crcSize)
	}

	end := responseHeaderSize + n
	want := binary.LittleEndian.Uint16(frame[end : end+crcSize])
	if got := crc16(frame[2:end]); got != want {
		return nil, fmt.Errorf("%w: got 0x%04X, frame says 0x%04X", ErrChecksum, got, want)
	}

	return frame[responseHeaderSize:end], nil
}
