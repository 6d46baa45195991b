// internal/frame/crc.go
package frame

import (
	"bytes"
	"strconv"

	"github.com/sigurn/crc16"
)

// crcField marks the optional trailing CRC16/ARC of an ASCII frame.
const crcField = "&crc="

var arcTable = crc16.MakeTable(crc16.CRC16_ARC)

// CRC returns the CRC16/ARC of b.
func CRC(b []byte) uint16 {
	return crc16.Checksum(b, arcTable)
}

// CheckASCII validates the trailing crc field when present.
// The CRC covers every byte before "&crc=".
func CheckASCII(f []byte) error {
	body := bytes.TrimRight(f, "\r\n")

	i := bytes.LastIndex(body, []byte(crcField))
	if i < 0 {
		return nil
	}

	v, err := strconv.ParseUint(string(body[i+len(crcField):]), 16, 16)
	if err != nil {
		return &ChecksumError{Got: 0, Want: CRC(body[:i])}
	}

	want := CRC(body[:i])
	if uint16(v) != want {
		return &ChecksumError{Want: want, Got: uint16(v)}
	}
	return nil
}

// StripCRC returns the frame body without terminator and crc field.
func StripCRC(f []byte) []byte {
	body := bytes.TrimRight(f, "\r\n")
	if i := bytes.LastIndex(body, []byte(crcField)); i >= 0 {
		return body[:i]
	}
	return body
}
