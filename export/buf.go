// Package export serializes constraint systems and witnesses to the
// iden3/snarkjs binary formats (.r1cs version 1, .wtns version 2).
package export

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// OutputBuf accumulates little-endian encoded values.
type OutputBuf struct {
	buf []byte
}

func (o *OutputBuf) AppendUint32(x uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, x)
}

func (o *OutputBuf) AppendUint64(x uint64) {
	o.buf = binary.LittleEndian.AppendUint64(o.buf, x)
}

// AppendElement writes a field element as 32 little-endian bytes.
func (o *OutputBuf) AppendElement(e *fr.Element) {
	b := e.Bytes()
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	o.buf = append(o.buf, b[:]...)
}

func (o *OutputBuf) AppendBytes(b []byte) {
	o.buf = append(o.buf, b...)
}

func (o *OutputBuf) Len() int {
	return len(o.buf)
}

func (o *OutputBuf) Bytes() []byte {
	return o.buf
}

// InputBuf consumes little-endian encoded values from a byte slice.
type InputBuf struct {
	buf []byte
}

func NewInputBuf(buf []byte) *InputBuf {
	return &InputBuf{buf: buf}
}

func (i *InputBuf) ReadUint32() uint32 {
	x := binary.LittleEndian.Uint32(i.buf[:4])
	i.buf = i.buf[4:]
	return x
}

func (i *InputBuf) ReadUint64() uint64 {
	x := binary.LittleEndian.Uint64(i.buf[:8])
	i.buf = i.buf[8:]
	return x
}

// ReadElement reads 32 little-endian bytes as a field element.
func (i *InputBuf) ReadElement() (fr.Element, error) {
	var be [32]byte
	for j := 0; j < 32; j++ {
		be[j] = i.buf[31-j]
	}
	i.buf = i.buf[32:]
	var e fr.Element
	err := e.SetBytesCanonical(be[:])
	return e, err
}

func (i *InputBuf) ReadBytes(n int) []byte {
	b := i.buf[:n]
	i.buf = i.buf[n:]
	return b
}

func (i *InputBuf) Remaining() int {
	return len(i.buf)
}
