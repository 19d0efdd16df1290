package store

import (
	"encoding/binary"
	"fmt"

	"github.com/crosslink-network/watcher/chain"
)

// byteOrder matches channeldb's convention: big endian, so that any future
// cursor scan over these keys iterates in a useful order.
var byteOrder = binary.BigEndian

// encodeSignedUpdate writes a SignedUpdate as:
//
//	home_domain(4) | previous_root(32) | new_root(32) | sig_len(2) | sig
func encodeSignedUpdate(su *chain.SignedUpdate) ([]byte, error) {
	if len(su.Signature) > 1<<16-1 {
		return nil, fmt.Errorf("signature too large to encode: %d bytes", len(su.Signature))
	}

	buf := make([]byte, 4+32+32+2+len(su.Signature))
	byteOrder.PutUint32(buf[0:4], su.HomeDomain)
	copy(buf[4:36], su.PreviousRoot[:])
	copy(buf[36:68], su.NewRoot[:])
	byteOrder.PutUint16(buf[68:70], uint16(len(su.Signature)))
	copy(buf[70:], su.Signature)

	return buf, nil
}

func decodeSignedUpdate(raw []byte) (*chain.SignedUpdate, error) {
	if len(raw) < 70 {
		return nil, fmt.Errorf("signed update record too short: %d bytes", len(raw))
	}

	su := &chain.SignedUpdate{}
	su.HomeDomain = byteOrder.Uint32(raw[0:4])
	copy(su.PreviousRoot[:], raw[4:36])
	copy(su.NewRoot[:], raw[36:68])

	sigLen := int(byteOrder.Uint16(raw[68:70]))
	if len(raw) < 70+sigLen {
		return nil, fmt.Errorf("signed update record truncated: want %d more bytes", sigLen)
	}
	su.Signature = append([]byte(nil), raw[70:70+sigLen]...)

	return su, nil
}
