package card

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordVersion1 = 1

// ErrInvalidRecord indicates stored bytes that do not decode to a
// structurally valid card.
var ErrInvalidRecord = errors.New("invalid card record")

// Encode serializes a card to the versioned binary record layout used
// by store implementations. All integers are big-endian; strings and
// the code matrix are length-prefixed.
func Encode(c *Card) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidRecord
	}
	if c.Rows < 1 || c.Columns < 1 || c.CodeLength < 1 {
		return nil, ErrInvalidRecord
	}
	if len(c.Codes) != c.Rows*c.Columns*c.CodeLength {
		return nil, ErrInvalidRecord
	}
	if len(c.ID) > 65535 || len(c.OwnerID) > 65535 || len(c.Alphabet) > 65535 {
		return nil, ErrInvalidRecord
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)
	buf.WriteByte(byte(c.State))

	for _, v := range []uint16{uint16(c.Rows), uint16(c.Columns), uint16(c.CodeLength)} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, c.FailedAttempts); err != nil {
		return nil, err
	}
	for _, ts := range []int64{c.LockedUntil, c.CreatedAt, c.ActivatedAt, c.ExpiresAt, c.LastSuccessAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, c.Version); err != nil {
		return nil, err
	}

	for _, s := range []string{c.ID, c.OwnerID, c.Alphabet} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(c.Codes))); err != nil {
		return nil, err
	}
	buf.Write(c.Codes)

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode. The code matrix length is
// cross-checked against the decoded dimensions.
func Decode(data []byte) (*Card, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidRecord
	}
	if version != recordVersion1 {
		return nil, ErrInvalidRecord
	}

	stateByte, err := reader.ReadByte()
	if err != nil {
		return nil, ErrInvalidRecord
	}
	if stateByte > byte(StateRevoked) {
		return nil, ErrInvalidRecord
	}

	c := &Card{State: State(stateByte)}

	var rows, cols, codeLen uint16
	for _, dst := range []*uint16{&rows, &cols, &codeLen} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, ErrInvalidRecord
		}
	}
	c.Rows, c.Columns, c.CodeLength = int(rows), int(cols), int(codeLen)

	if err := binary.Read(reader, binary.BigEndian, &c.FailedAttempts); err != nil {
		return nil, ErrInvalidRecord
	}
	for _, dst := range []*int64{&c.LockedUntil, &c.CreatedAt, &c.ActivatedAt, &c.ExpiresAt, &c.LastSuccessAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, ErrInvalidRecord
		}
	}
	if err := binary.Read(reader, binary.BigEndian, &c.Version); err != nil {
		return nil, ErrInvalidRecord
	}

	for _, dst := range []*string{&c.ID, &c.OwnerID, &c.Alphabet} {
		s, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*dst = s
	}

	var codesLen uint32
	if err := binary.Read(reader, binary.BigEndian, &codesLen); err != nil {
		return nil, ErrInvalidRecord
	}
	if c.Rows < 1 || c.Columns < 1 || c.CodeLength < 1 {
		return nil, ErrInvalidRecord
	}
	if int(codesLen) != c.Rows*c.Columns*c.CodeLength {
		return nil, ErrInvalidRecord
	}
	c.Codes = make([]byte, codesLen)
	if _, err := io.ReadFull(reader, c.Codes); err != nil {
		return nil, ErrInvalidRecord
	}
	if reader.Len() != 0 {
		return nil, ErrInvalidRecord
	}

	return c, nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", ErrInvalidRecord
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", ErrInvalidRecord
	}
	return string(b), nil
}
