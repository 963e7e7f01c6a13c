package fwimage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrContainer is returned when a file does not hold a valid ASM236x
// firmware container.
var ErrContainer = errors.New("bad firmware container")

// Container magic bytes accepted by the boot ROM.
const (
	MagicLegacy  = 0x4b
	MagicCurrent = 0x5a
)

// containerHeader is the size prefix in front of the code.
const containerHeader = 2

// Container describes the vendor firmware file layout:
//
//	u16le size | code[size] | magic | checksum | 6 trailing bytes
//
// The checksum is the low byte of the sum of the code bytes.
type Container struct {
	CodeSize uint16
	Magic    byte
	Checksum byte
}

// ParseContainer validates the container around data and returns it.
func ParseContainer(data []byte) (Container, error) {
	if len(data) < containerHeader {
		return Container{}, fmt.Errorf("%w: %d-byte file has no size prefix", ErrContainer, len(data))
	}
	size := binary.LittleEndian.Uint16(data)
	end := containerHeader + int(size)
	if len(data) < end+2 {
		return Container{}, fmt.Errorf("%w: size %#x overruns %d-byte file", ErrContainer, size, len(data))
	}

	c := Container{CodeSize: size, Magic: data[end], Checksum: data[end+1]}
	if c.Magic != MagicLegacy && c.Magic != MagicCurrent {
		return c, fmt.Errorf("%w: magic %#02x, want %#02x or %#02x", ErrContainer, c.Magic, MagicLegacy, MagicCurrent)
	}
	if sum := Checksum(data[containerHeader:end]); sum != c.Checksum {
		return c, fmt.Errorf("%w: checksum %#02x, calculated %#02x", ErrContainer, c.Checksum, sum)
	}
	return c, nil
}

// Checksum returns the low byte of the sum of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
