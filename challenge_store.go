package gridauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

const (
	challengeRecordVersion1 = 1

	// recentHistoryTTL bounds how long the recent-coordinate list
	// survives without new challenges.
	recentHistoryTTL = 24 * time.Hour
)

var (
	errChallengeNotFound = errors.New("challenge not found")
	errChallengeBackend  = errors.New("challenge backend unavailable")
)

// challengeRecord is the pending-challenge state kept in Redis for the
// token TTL. The secret hash binds the opaque token to the record; the
// plaintext secret exists only inside the issued token.
type challengeRecord struct {
	CardID      string
	SecretHash  [rng.SecretHashSize]byte
	Coordinates []Coordinate
	IssuedAt    int64
	ExpiresAt   int64
}

type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeStore(redisClient redis.UniversalClient, prefix string) *challengeStore {
	return &challengeStore{redis: redisClient, prefix: prefix}
}

func (s *challengeStore) key(id rng.ChallengeID) string {
	return s.prefix + ":ch:" + id.String()
}

func (s *challengeStore) recentKey(cardID string) string {
	return s.prefix + ":recent:" + cardID
}

func (s *challengeStore) Save(
	ctx context.Context,
	id rng.ChallengeID,
	record *challengeRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(id), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

// Consume atomically removes the record and returns it. GETDEL makes
// consumption exclusive: under concurrent submissions of the same
// token at most one caller observes the record.
func (s *challengeStore) Consume(ctx context.Context, id rng.ChallengeID) (*challengeRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, errChallengeNotFound
	}
	return record, nil
}

// PushRecent records the coordinates of a freshly issued challenge and
// trims the history to the exclusion window.
func (s *challengeStore) PushRecent(
	ctx context.Context,
	cardID string,
	coords []Coordinate,
	window int,
) error {
	if window <= 0 {
		return nil
	}

	key := s.recentKey(cardID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, encodeCoordinates(coords))
		pipe.LTrim(ctx, key, 0, int64(window-1))
		pipe.Expire(ctx, key, recentHistoryTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

// Recent returns the union of coordinates used by the last window
// challenges. Selection treats history errors as an empty exclusion
// set, so a corrupt entry is skipped rather than surfaced.
func (s *challengeStore) Recent(
	ctx context.Context,
	cardID string,
	window int,
) (map[Coordinate]struct{}, error) {
	if window <= 0 {
		return nil, nil
	}

	entries, err := s.redis.LRange(ctx, s.recentKey(cardID), 0, int64(window-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	exclude := make(map[Coordinate]struct{})
	for _, entry := range entries {
		coords, err := decodeCoordinates([]byte(entry))
		if err != nil {
			continue
		}
		for _, c := range coords {
			exclude[c] = struct{}{}
		}
	}
	return exclude, nil
}

func (s *challengeStore) ClearRecent(ctx context.Context, cardID string) error {
	if err := s.redis.Del(ctx, s.recentKey(cardID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return nil
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	buf.Write(record.SecretHash[:])

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.CardID) > 65535 {
		return nil, errors.New("challenge card id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.CardID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.CardID)

	if len(record.Coordinates) > 65535 {
		return nil, errors.New("challenge coordinate count exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Coordinates))); err != nil {
		return nil, err
	}
	for _, c := range record.Coordinates {
		if err := binary.Write(&buf, binary.BigEndian, uint16(c.Row)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(c.Col)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &challengeRecord{}
	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var cardLen uint16
	if err := binary.Read(reader, binary.BigEndian, &cardLen); err != nil {
		return nil, err
	}
	cardID := make([]byte, cardLen)
	if _, err := io.ReadFull(reader, cardID); err != nil {
		return nil, err
	}
	record.CardID = string(cardID)

	var count uint16
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	record.Coordinates = make([]Coordinate, count)
	for i := range record.Coordinates {
		var row, col uint16
		if err := binary.Read(reader, binary.BigEndian, &row); err != nil {
			return nil, err
		}
		if err := binary.Read(reader, binary.BigEndian, &col); err != nil {
			return nil, err
		}
		record.Coordinates[i] = Coordinate{Row: int(row), Col: int(col)}
	}

	if reader.Len() != 0 {
		return nil, errors.New("invalid challenge record length")
	}
	return record, nil
}

func encodeCoordinates(coords []Coordinate) []byte {
	out := make([]byte, 0, len(coords)*4)
	for _, c := range coords {
		out = binary.BigEndian.AppendUint16(out, uint16(c.Row))
		out = binary.BigEndian.AppendUint16(out, uint16(c.Col))
	}
	return out
}

func decodeCoordinates(data []byte) ([]Coordinate, error) {
	if len(data)%4 != 0 {
		return nil, errors.New("invalid coordinate list length")
	}
	coords := make([]Coordinate, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		coords = append(coords, Coordinate{
			Row: int(binary.BigEndian.Uint16(data[i : i+2])),
			Col: int(binary.BigEndian.Uint16(data[i+2 : i+4])),
		})
	}
	return coords, nil
}
