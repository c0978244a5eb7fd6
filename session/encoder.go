package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/uuid"
)

const formatVersionCurrent = 1

// Fixed header layout, 1-based offsets (the rotate and revoke scripts
// patch these byte ranges in place and must stay in sync):
//
//	1      format version
//	2      flags (0 = live, 1 = revoked)
//	3-34   credential hash (SHA-256)
//	35-50  jti (raw UUID bytes)
//	51-58  created-at unix seconds, big endian
//	59-66  updated-at unix seconds, big endian
//	67-74  expires-at unix seconds, big endian
//
// Variable-length tail: userID, issued IP, issued user agent, each as a
// single length byte followed by the bytes.
const headerSize = 74

// ErrCorruptRecord is returned when a stored session blob cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt session record")

func Encode(s *Session) ([]byte, error) {
	jti, err := uuid.Parse(s.JTI)
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if len(s.UserID) == 0 || len(s.UserID) > 255 {
		return nil, errors.New("userID length out of range")
	}
	if len(s.IssuedIP) > 255 {
		return nil, errors.New("issued IP too long")
	}
	if len(s.IssuedUserAgent) > 255 {
		return nil, errors.New("issued user agent too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(formatVersionCurrent)
	if s.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(s.CredentialHash[:])
	buf.Write(jti[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.WriteByte(byte(len(s.IssuedIP)))
	buf.WriteString(s.IssuedIP)
	buf.WriteByte(byte(len(s.IssuedUserAgent)))
	buf.WriteString(s.IssuedUserAgent)

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	if len(data) < headerSize+1 {
		return nil, ErrCorruptRecord
	}

	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersionCurrent {
		return nil, ErrCorruptRecord
	}

	s := &Session{}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch flags {
	case 0:
	case 1:
		s.Revoked = true
	default:
		return nil, ErrCorruptRecord
	}

	if _, err := io.ReadFull(reader, s.CredentialHash[:]); err != nil {
		return nil, ErrCorruptRecord
	}

	var jti uuid.UUID
	if _, err := io.ReadFull(reader, jti[:]); err != nil {
		return nil, ErrCorruptRecord
	}
	s.JTI = jti.String()

	for _, dst := range []*int64{&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, ErrCorruptRecord
		}
	}

	for _, dst := range []*string{&s.UserID, &s.IssuedIP, &s.IssuedUserAgent} {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, ErrCorruptRecord
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, ErrCorruptRecord
		}
		*dst = string(raw)
	}
	if s.UserID == "" {
		return nil, ErrCorruptRecord
	}

	return s, nil
}
