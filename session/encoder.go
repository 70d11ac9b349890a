package session

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// v1 used one-byte field lengths; it is still readable.
	identityFormatVersionV1      = 1
	identityFormatVersionCurrent = 2

	// CurrentSchemaVersion is the identity encoding version written by [EncodeIdentity].
	CurrentSchemaVersion = identityFormatVersionCurrent
)

var (
	// ErrIdentityCorrupt is returned when a stored identity cannot be decoded.
	ErrIdentityCorrupt = errors.New("identity corrupt")
	// ErrUnsupportedSchema is returned for identity blobs written by a newer encoder.
	ErrUnsupportedSchema = errors.New("unsupported identity schema version")
)

// legacyIdentity is the JSON shape written by the first storage format.
type legacyIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// EncodeIdentity renders id as a storable string: a version byte followed by
// uvarint length-prefixed fields, base64 armored so text backends can hold it
// verbatim. Fields have no length limit.
func EncodeIdentity(id Identity) (string, error) {
	buf := make([]byte, 0, 1+3*binary.MaxVarintLen64+len(id.ID)+len(id.Email)+len(id.DisplayName))
	buf = append(buf, identityFormatVersionCurrent)

	for _, field := range []string{id.ID, id.Email, id.DisplayName} {
		buf = binary.AppendUvarint(buf, uint64(len(field)))
		buf = append(buf, field...)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DecodeIdentity parses a value produced by [EncodeIdentity]. A JSON object in the
// legacy {"id","email","name"} shape is also accepted.
func DecodeIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{}, ErrIdentityCorrupt
	}
	if strings.HasPrefix(trimmed, "{") {
		return decodeLegacyIdentity(trimmed)
	}

	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityCorrupt, err)
	}

	reader := bytes.NewReader(data)
	version, err := reader.ReadByte()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityCorrupt, err)
	}
	readLen := readUvarintLen
	switch version {
	case identityFormatVersionCurrent:
	case identityFormatVersionV1:
		readLen = readByteLen
	default:
		return Identity{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	var id Identity
	for _, dst := range []*string{&id.ID, &id.Email, &id.DisplayName} {
		v, err := readString(reader, readLen)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrIdentityCorrupt, err)
		}
		*dst = v
	}
	if reader.Len() != 0 {
		return Identity{}, fmt.Errorf("%w: %d trailing bytes", ErrIdentityCorrupt, reader.Len())
	}

	return id, nil
}

func readString(reader *bytes.Reader, readLen func(*bytes.Reader) (uint64, error)) (string, error) {
	n, err := readLen(reader)
	if err != nil {
		return "", err
	}
	if n > uint64(reader.Len()) {
		return "", fmt.Errorf("field length %d exceeds remaining %d bytes", n, reader.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readUvarintLen(reader *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(reader)
}

func readByteLen(reader *bytes.Reader) (uint64, error) {
	n, err := reader.ReadByte()
	return uint64(n), err
}

func decodeLegacyIdentity(raw string) (Identity, error) {
	var legacy legacyIdentity
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityCorrupt, err)
	}
	return Identity{
		ID:          legacy.ID,
		Email:       legacy.Email,
		DisplayName: legacy.Name,
	}, nil
}
