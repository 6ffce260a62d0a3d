package scpi

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// AppendBlock appends payload to dst as an IEEE 488.2 definite-length block:
// '#', one digit giving the length of the length field, the decimal payload
// length, then the raw payload.
func AppendBlock(dst []byte, payload []byte) []byte {
	length := strconv.Itoa(len(payload))
	dst = append(dst, '#', byte('0'+len(length)))
	dst = append(dst, length...)
	return append(dst, payload...)
}

// SamplesToBytes flattens 16-bit samples little-endian for the wire.
func SamplesToBytes(samples []uint16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], s)
	}
	return out
}

// ParseBlock decodes a definite-length block, returning the payload and any
// trailing bytes. Used by the test client and the tests.
func ParseBlock(data []byte) (payload, rest []byte, err error) {
	if len(data) < 2 || data[0] != '#' {
		return nil, nil, fmt.Errorf("not a block: % x", data)
	}
	n := int(data[1] - '0')
	if n < 1 || n > 9 || len(data) < 2+n {
		return nil, nil, fmt.Errorf("bad block length field")
	}
	size, err := strconv.Atoi(string(data[2 : 2+n]))
	if err != nil {
		return nil, nil, fmt.Errorf("bad block length: %w", err)
	}
	if len(data) < 2+n+size {
		return nil, nil, fmt.Errorf("short block: want %d payload bytes, have %d", size, len(data)-2-n)
	}
	return data[2+n : 2+n+size], data[2+n+size:], nil
}
