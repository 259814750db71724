package metricviz

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// The metric-stream protocol used on the /ws2 endpoint. Every message is a
// fixed 8-byte envelope followed by a payload: DATA carries one metric row,
// METADATA carries the JSON-encoded RunMetadata, STREAM_END closes the
// stream. All integers are little-endian.
const (
	ProtocolVersion byte = 1

	MessageTypeData      byte = 0x01
	MessageTypeMetadata  byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	EnvelopeHeaderSize = 8
)

// EnvelopeHeader is the fixed message envelope.
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte
	Type     byte
	Length   uint32 // payload length in bytes
}

// DataMessage is one metric row (type 0x01): the x value followed by the
// metric column values.
type DataMessage struct {
	Length uint32 // number of Y columns
	X      float64
	Ys     []float64
}

// StreamEndMessage (type 0x03) signals the end of the metric stream.
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// StreamMessage is a complete protocol message.
type StreamMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // one of: DataMessage, RunMetadata, StreamEndMessage
}

func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeDataMessage encodes one metric row: Length(4) + X(8) + Ys(8 each).
func EncodeDataMessage(msg DataMessage) ([]byte, error) {
	if uint32(len(msg.Ys)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match column count (%d)", msg.Length, len(msg.Ys))
	}

	buf := make([]byte, 12+8*len(msg.Ys))
	binary.LittleEndian.PutUint32(buf[0:4], msg.Length)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(msg.X))

	offset := 12
	for _, y := range msg.Ys {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(y))
		offset += 8
	}

	return buf, nil
}

func DecodeDataMessage(buf []byte) (DataMessage, error) {
	if len(buf) < 12 {
		return DataMessage{}, fmt.Errorf("buffer too short for DATA message: expected at least 12 bytes, got %d", len(buf))
	}

	msg := DataMessage{
		Length: binary.LittleEndian.Uint32(buf[0:4]),
		X:      math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12])),
	}

	// Computed in uint64: a crafted Length near 2^29 overflows 8*Length in
	// uint32 and would pass the size check with a short buffer.
	expectedSize := 12 + 8*uint64(msg.Length)
	if uint64(len(buf)) != expectedSize {
		return DataMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d columns, got %d", expectedSize, msg.Length, len(buf))
	}

	msg.Ys = make([]float64, msg.Length)
	offset := 12
	for i := uint32(0); i < msg.Length; i++ {
		msg.Ys[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
		offset += 8
	}

	return msg, nil
}

// METADATA and STREAM_END payloads are JSON with a 4-byte length prefix.
func encodeJSONPayload(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload(buf []byte, v interface{}) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for JSON payload: expected at least 4 bytes, got %d", len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if uint32(len(buf)) != 4+jsonLength {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", 4+jsonLength, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// EncodeStreamMessage encodes a complete message (envelope + payload). The
// header Length is overwritten with the actual payload size.
func EncodeStreamMessage(msg StreamMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeData:
		dataMsg, ok := msg.Payload.(DataMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected DataMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeDataMessage(dataMsg)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(RunMetadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected RunMetadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = encodeJSONPayload(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Header.Length = uint32(len(payload))
	header := EncodeEnvelopeHeader(msg.Header)

	fullMsg := make([]byte, 0, len(header)+len(payload))
	fullMsg = append(fullMsg, header...)
	return append(fullMsg, payload...), nil
}

// DecodeStreamMessage decodes a complete message (envelope + payload).
func DecodeStreamMessage(buf []byte) (StreamMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return StreamMessage{}, err
	}

	expectedSize := EnvelopeHeaderSize + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return StreamMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}
	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeData:
		dataMsg, err := DecodeDataMessage(payloadBytes)
		if err != nil {
			return StreamMessage{}, err
		}
		payload = dataMsg
	case MessageTypeMetadata:
		var metadata RunMetadata
		if err := decodeJSONPayload(payloadBytes, &metadata); err != nil {
			return StreamMessage{}, err
		}
		payload = metadata
	case MessageTypeStreamEnd:
		var streamEnd StreamEndMessage
		if err := decodeJSONPayload(payloadBytes, &streamEnd); err != nil {
			return StreamMessage{}, err
		}
		payload = streamEnd
	default:
		return StreamMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}

	return StreamMessage{
		Header:  env,
		Payload: payload,
	}, nil
}
