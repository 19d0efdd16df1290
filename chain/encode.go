package chain

import "encoding/binary"

// Bytes returns the canonical encoding of a FailureNotification, the
// message the watcher's signer signs to produce a SignedFailureNotification.
func (f FailureNotification) Bytes() []byte {
	buf := make([]byte, 4+len(f.UpdaterAddress))
	binary.BigEndian.PutUint32(buf[:4], f.HomeDomain)
	copy(buf[4:], f.UpdaterAddress[:])
	return buf
}
