package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"automated-kingdom/server/internal/sim"
)

// CodecVersion is written into every record header.
const CodecVersion = 1

// ErrUnsupportedVersion is returned when a record was written by a newer codec.
var ErrUnsupportedVersion = errors.New("persistence: unsupported snapshot version")

// Header identifies a saved snapshot.
type Header struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Tick      uint64    `json:"tick"`
	SavedAt   time.Time `json:"saved_at"`
}

// Record is the unit written to a store.
type Record struct {
	Header   Header       `json:"header"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

// Encode marshals rec to JSON and compresses it with zstd.
func Encode(rec Record) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode reverses Encode.
func Decode(data []byte) (Record, error) {
	var rec Record
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return rec, fmt.Errorf("decode snapshot: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return rec, fmt.Errorf("decode snapshot: zstd: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode snapshot: json: %w", err)
	}
	if rec.Header.Version > CodecVersion {
		return rec, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Header.Version)
	}
	return rec, nil
}
