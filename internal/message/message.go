// Package message defines the tagged wire messages that cross the firmware's
// internal bus and the split-keyboard link.
//
// Every message is framed as a fixed 4-byte tag followed by a fixed-size
// binary body. Tags are the only interop contract the core fixes: they must
// stay stable across firmware versions sharing a link, and a tag collision
// between two message types is a build-time contract violation.
package message

import (
	"encoding"
	"fmt"
)

// TagSize is the length of the type tag prefixing every frame.
const TagSize = 4

// Tag identifies a logical message type on the wire.
type Tag [TagSize]byte

// String returns the tag as printable text.
func (t Tag) String() string {
	return string(t[:])
}

// Message is a payload that can cross the internal bus and the split link.
// Decoding lives on the pointer type; receivers additionally require
// encoding.BinaryUnmarshaler.
type Message interface {
	encoding.BinaryMarshaler

	// MessageTag returns the frame tag for this message type. It must be
	// callable on a zero value.
	MessageTag() Tag
}

// Encode frames m as tag || body.
func Encode(m Message) ([]byte, error) {
	body, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.MessageTag(), err)
	}
	tag := m.MessageTag()
	frame := make([]byte, 0, TagSize+len(body))
	frame = append(frame, tag[:]...)
	frame = append(frame, body...)
	return frame, nil
}

// FrameTag extracts the tag from a raw frame.
// Returns false if the frame is shorter than a tag.
func FrameTag(frame []byte) (Tag, bool) {
	if len(frame) < TagSize {
		return Tag{}, false
	}
	var t Tag
	copy(t[:], frame[:TagSize])
	return t, true
}
