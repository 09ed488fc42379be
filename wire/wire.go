// Package wire defines the msgpack messages exchanged over NATS: raw sample
// chunks and markers published by a stream producer, and the aligned chunks
// the inlet republishes after alignment.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tne-lab/LSL-inlet/errors"
)

// Message type tags
const (
	TypeChunk   = "chunk"
	TypeMarker  = "marker"
	TypeAligned = "aligned"
)

// ChunkMessage carries multiplexed frames from a producer. Samples are
// frame-major: Channels scalars per timestamp.
type ChunkMessage struct {
	Type       string    `msgpack:"type"`
	StreamID   string    `msgpack:"stream_id"`
	Seq        uint64    `msgpack:"seq"`
	Channels   int       `msgpack:"channels"`
	Samples    []float32 `msgpack:"samples"`
	Timestamps []float64 `msgpack:"timestamps"`
}

// Frames is the number of complete timestamps carried
func (m *ChunkMessage) Frames() int {
	return len(m.Timestamps)
}

// MarkerMessage carries one event marker
type MarkerMessage struct {
	Type      string  `msgpack:"type"`
	StreamID  string  `msgpack:"stream_id"`
	Label     string  `msgpack:"label"`
	Timestamp float64 `msgpack:"timestamp"`
}

// AlignedChunk is an emitted chunk after alignment: relative timestamps,
// contiguous sample indices and one event code per frame (0 = none).
type AlignedChunk struct {
	Type       string    `msgpack:"type"`
	SessionID  string    `msgpack:"session_id"`
	Stream     string    `msgpack:"stream"`
	Seq        uint64    `msgpack:"seq"`
	Channels   int       `msgpack:"channels"`
	FirstIndex int64     `msgpack:"first_index"`
	Samples    []float32 `msgpack:"samples"`
	Timestamps []float64 `msgpack:"timestamps"`
	EventCodes []uint64  `msgpack:"event_codes"`
}

// EncodeChunk marshals a chunk message, stamping its type
func EncodeChunk(m ChunkMessage) ([]byte, error) {
	m.Type = TypeChunk
	return encode("EncodeChunk", m)
}

// EncodeMarker marshals a marker message, stamping its type
func EncodeMarker(m MarkerMessage) ([]byte, error) {
	m.Type = TypeMarker
	return encode("EncodeMarker", m)
}

// EncodeAligned marshals an aligned chunk, stamping its type
func EncodeAligned(m AlignedChunk) ([]byte, error) {
	m.Type = TypeAligned
	return encode("EncodeAligned", m)
}

func encode(op string, v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "wire", op, "msgpack marshal")
	}
	return data, nil
}

// DecodeChunk unmarshals a chunk message. The channel count must be positive;
// sample and timestamp lengths are reconciled by the consumer.
func DecodeChunk(data []byte) (ChunkMessage, error) {
	var m ChunkMessage
	if err := decode("DecodeChunk", data, &m, TypeChunk, &m.Type); err != nil {
		return ChunkMessage{}, err
	}
	if m.Channels <= 0 {
		return ChunkMessage{}, errors.WrapInvalid(
			fmt.Errorf("%w: channel count %d", errors.ErrInvalidData, m.Channels),
			"wire", "DecodeChunk", "channel count check")
	}
	return m, nil
}

// DecodeMarker unmarshals a marker message
func DecodeMarker(data []byte) (MarkerMessage, error) {
	var m MarkerMessage
	if err := decode("DecodeMarker", data, &m, TypeMarker, &m.Type); err != nil {
		return MarkerMessage{}, err
	}
	return m, nil
}

// DecodeAligned unmarshals an aligned chunk
func DecodeAligned(data []byte) (AlignedChunk, error) {
	var m AlignedChunk
	if err := decode("DecodeAligned", data, &m, TypeAligned, &m.Type); err != nil {
		return AlignedChunk{}, err
	}
	return m, nil
}

func decode(op string, data []byte, v any, want string, got *string) error {
	if len(data) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "wire", op, "empty payload")
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "wire", op, "msgpack unmarshal")
	}
	if *got != want {
		return errors.WrapInvalid(
			fmt.Errorf("%w: message type %q, want %q", errors.ErrInvalidData, *got, want),
			"wire", op, "type check")
	}
	return nil
}
