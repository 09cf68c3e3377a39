package timeline

import (
	"encoding/binary"
	"fmt"
	"io"
)

// datagramHeaderSize is the duration prefix plus the payload length.
const datagramHeaderSize = 8 + 4

// maxPayloadLen bounds payloads read back from disk.
const maxPayloadLen = 1 << 28

// Datagram is one analysis frame and the number of samples it covers.
// The payload encoding is chosen by the producer; the timeline treats it as opaque.
type Datagram struct {
	Duration uint64
	Payload  []byte
}

type datagramHeader struct {
	Duration   uint64
	PayloadLen uint32
}

// Size is the encoded length of the record in bytes.
func (d Datagram) Size() int64 {
	return datagramHeaderSize + int64(len(d.Payload))
}

func (d Datagram) encode(w io.Writer) error {
	if len(d.Payload) > maxPayloadLen {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrInvalidArgument, len(d.Payload), maxPayloadLen)
	}
	h := datagramHeader{Duration: d.Duration, PayloadLen: uint32(len(d.Payload))}
	if err := binary.Write(w, binary.BigEndian, &h); err != nil {
		return err
	}
	_, err := w.Write(d.Payload)
	return err
}

func (d *Datagram) decode(r io.Reader) error {
	var h datagramHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return err
	}
	if h.PayloadLen > maxPayloadLen {
		return fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, h.PayloadLen)
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	d.Duration = h.Duration
	d.Payload = payload
	return nil
}
