package frame

import (
	"encoding/binary"
	"io"
	"math"
)

// FourByteString tags the payload kind at the start of every encoded frame.
type FourByteString [4]byte

func NewFourByteStr(str string) FourByteString {
	if len(str) != 4 {
		panic("FourByteString must be 4 bytes")
	}
	res := FourByteString{}
	for i := 0; i < 4; i++ {
		res[i] = str[i]
	}
	return res
}

func (s FourByteString) String() string {
	return string(s[:])
}

func writeFloats(w io.Writer, v []float32) error {
	if len(v) > math.MaxUint16 {
		return errTooManyValues
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

func readFloats(r io.Reader) ([]float32, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	v := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}
