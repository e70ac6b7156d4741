package openassets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/arkade-os/colorcore/pkg/errors"
)

// addAmounts sums satoshi amounts, failing instead of wrapping around.
func addAmounts(amounts ...uint64) (uint64, error) {
	var total, carry uint64
	for _, a := range amounts {
		total, carry = bits.Add64(total, a, 0)
		if carry != 0 {
			return 0, errors.INVALID_QUANTITY.New("amounts %v overflow", amounts).
				WithMetadata(errors.QuantityMetadata{Max: MaxAssetQuantity})
		}
	}
	return total, nil
}

func writeUint16LE(w io.Writer, v uint16) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeUvarint(w io.Writer, v uint64) error {
	_, err := w.Write(binary.AppendUvarint(nil, v))
	return err
}

// writeVarBytes writes buf prefixed by its length as uvarint.
func writeVarBytes(w io.Writer, buf []byte) error {
	if err := writeUvarint(w, uint64(len(buf))); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

func readUint16LE(r *bytes.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, io.EOF
	}
	return v, nil
}

// readUvarint rejects values overflowing 64 bits.
func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	switch err {
	case nil:
		return v, nil
	case io.EOF, io.ErrUnexpectedEOF:
		return 0, fmt.Errorf("truncated varint")
	default:
		return 0, err
	}
}

func readVarBytes(r *bytes.Reader) ([]byte, error) {
	size, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > uint64(r.Len()) {
		return nil, fmt.Errorf("declared length %d exceeds remaining %d bytes", size, r.Len())
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
