package extension

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Well-known authentication types.
const (
	AuthSimple = "simple"
	AuthBearer = "bearer"
)

const (
	authWellKnownFlag = 0x80
	authTypeMaxLength = 0x7F
)

// wellKnownAuthTypes is indexed by the id of a well-known authentication type.
var wellKnownAuthTypes = [...]string{AuthSimple, AuthBearer}

var (
	errInvalidAuthBytes     = errors.New("invalid authentication bytes")
	errAuthTypeLengthExceed = errors.New("invalid auth type length: must be 1 to 127 bytes")
	errUsernameLengthExceed = errors.New("invalid username length: exceed 65535 bytes")
)

func wellKnownAuthID(typ string) (int, bool) {
	for id, it := range wellKnownAuthTypes {
		if it == typ {
			return id, true
		}
	}
	return 0, false
}

// Authentication is an entry of the message/x.rsocket.authentication.v0 metadata:
// the type of the credentials and the credentials.
type Authentication struct {
	typ     string
	payload []byte
}

// NewAuthentication creates an authentication of any type.
func NewAuthentication(authType string, payload []byte) (*Authentication, error) {
	if len(authType) < 1 || len(authType) > authTypeMaxLength {
		return nil, errAuthTypeLengthExceed
	}
	return &Authentication{typ: authType, payload: payload}, nil
}

// MustNewAuthentication is like NewAuthentication but panics on error.
func MustNewAuthentication(authType string, payload []byte) *Authentication {
	auth, err := NewAuthentication(authType, payload)
	if err != nil {
		panic(err)
	}
	return auth
}

// NewBearerAuthentication creates a bearer token authentication.
func NewBearerAuthentication(token string) *Authentication {
	return &Authentication{typ: AuthBearer, payload: []byte(token)}
}

// NewSimpleAuthentication creates a username/password authentication.
// The payload is the username length as uint16, the username and then the password.
func NewSimpleAuthentication(username, password string) (*Authentication, error) {
	if len(username) > math.MaxUint16 {
		return nil, errUsernameLengthExceed
	}
	b := make([]byte, 2, 2+len(username)+len(password))
	binary.BigEndian.PutUint16(b, uint16(len(username)))
	b = append(append(b, username...), password...)
	return &Authentication{typ: AuthSimple, payload: b}, nil
}

// ParseAuthentication decodes an authentication entry.
func ParseAuthentication(raw []byte) (*Authentication, error) {
	if len(raw) < 1 {
		return nil, errInvalidAuthBytes
	}
	n := int(raw[0] &^ authWellKnownFlag)
	if raw[0]&authWellKnownFlag != 0 {
		typ := "unknown"
		if n < len(wellKnownAuthTypes) {
			typ = wellKnownAuthTypes[n]
		}
		return &Authentication{typ: typ, payload: raw[1:]}, nil
	}
	if n == 0 || len(raw) < 1+n {
		return nil, errInvalidAuthBytes
	}
	return &Authentication{typ: string(raw[1 : 1+n]), payload: raw[1+n:]}, nil
}

// Type returns the authentication type.
func (a Authentication) Type() string {
	return a.typ
}

// Payload returns the credentials.
func (a Authentication) Payload() []byte {
	return a.payload
}

// IsWellKnown returns true if the type is encoded as a well-known id.
func (a Authentication) IsWellKnown() bool {
	_, ok := wellKnownAuthID(a.typ)
	return ok
}

// BearerToken returns the token of a bearer authentication.
func (a Authentication) BearerToken() (string, bool) {
	if a.typ != AuthBearer {
		return "", false
	}
	return string(a.payload), true
}

// SimpleCredentials returns username and password of a simple authentication.
func (a Authentication) SimpleCredentials() (username, password string, ok bool) {
	if a.typ != AuthSimple || len(a.payload) < 2 {
		return
	}
	n := 2 + int(binary.BigEndian.Uint16(a.payload))
	if len(a.payload) < n {
		return
	}
	return string(a.payload[2:n]), string(a.payload[n:]), true
}

// Bytes encodes the authentication entry.
func (a Authentication) Bytes() []byte {
	if id, ok := wellKnownAuthID(a.typ); ok {
		return append([]byte{byte(id) | authWellKnownFlag}, a.payload...)
	}
	raw := make([]byte, 0, 1+len(a.typ)+len(a.payload))
	raw = append(raw, byte(len(a.typ)))
	raw = append(raw, a.typ...)
	return append(raw, a.payload...)
}

// IsInvalidAuthenticationBytes returns true if err reports malformed authentication bytes.
func IsInvalidAuthenticationBytes(err error) bool {
	return errors.Is(err, errInvalidAuthBytes)
}

// IsAuthTypeLengthExceed returns true if err reports an auth type too long or empty.
func IsAuthTypeLengthExceed(err error) bool {
	return errors.Is(err, errAuthTypeLengthExceed)
}
