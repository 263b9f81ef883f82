// Package msgpack provides the MessagePack encoding of exchange messages.
// Encoding is deterministic: map keys are sorted and integers use their
// most compact representation, so equal messages produce equal bytes.
package msgpack

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes v into MessagePack.
//
// Example:
//
//	data, err := msgpack.Encode(&exchange.InspectRequest{Plan: plan})
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode deserializes MessagePack data into v, which must be a pointer.
// Trailing bytes after the first value are rejected.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("failed to decode MessagePack: %d trailing bytes", r.Len())
	}

	return nil
}
