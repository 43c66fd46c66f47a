package core

import (
	"encoding/binary"
	"strconv"
)

// DefaultVersion is default protocol version.
var DefaultVersion = NewVersion(1, 0)

// VersionLen is the encoded size of a version.
const VersionLen = 4

// Version define the version of protocol.
// It includes major and minor version.
type Version [2]uint16

// Bytes returns raw bytes of current version.
func (p Version) Bytes() []byte {
	bs := make([]byte, VersionLen)
	binary.BigEndian.PutUint16(bs, p[0])
	binary.BigEndian.PutUint16(bs[2:], p[1])
	return bs
}

// Major returns major version.
func (p Version) Major() uint16 {
	return p[0]
}

// Minor returns minor version.
func (p Version) Minor() uint16 {
	return p[1]
}

// Compatible returns true if peer version can talk with current version.
func (p Version) Compatible(other Version) bool {
	return p[0] == other[0]
}

func (p Version) String() string {
	return strconv.Itoa(int(p[0])) + "." + strconv.Itoa(int(p[1]))
}

// NewVersion creates a new Version from major and minor.
func NewVersion(major, minor uint16) Version {
	return Version{major, minor}
}

// ParseVersion reads a version from the first four bytes.
func ParseVersion(b []byte) Version {
	return Version{binary.BigEndian.Uint16(b), binary.BigEndian.Uint16(b[2:])}
}
