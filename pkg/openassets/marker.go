package openassets

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/arkade-os/colorcore/pkg/errors"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// MarkerTag is the 2-byte prefix ("OA") identifying a marker payload.
	MarkerTag = []byte{0x4f, 0x41}
)

const (
	// MarkerVersion is the only supported marker version.
	MarkerVersion uint16 = 0x0001
	// MaxAssetQuantity is the largest quantity a single output can carry.
	MaxAssetQuantity = uint64(math.MaxInt64)
)

// Marker is the payload of the marker output: one asset quantity per output
// preceding it, plus arbitrary metadata.
type Marker struct {
	Quantities []uint64
	Metadata   []byte
}

// NewMarker returns a validated marker.
func NewMarker(quantities []uint64, metadata []byte) (*Marker, error) {
	m := &Marker{Quantities: quantities, Metadata: metadata}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMarkerFromPayload decodes a raw marker payload (tag included).
func NewMarkerFromPayload(payload []byte) (*Marker, error) {
	m, err := newMarkerFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.MALFORMED_MARKER.Wrap(err)
	}
	return m, nil
}

// NewMarkerFromScript decodes a marker from an output script made of OP_RETURN
// followed by a single data push.
func NewMarkerFromScript(script []byte) (*Marker, error) {
	payload, err := rawPayloadFromScript(script)
	if err != nil {
		return nil, errors.MALFORMED_MARKER.Wrap(err).
			WithMetadata(errors.MarkerMetadata{Script: hex.EncodeToString(script)})
	}
	m, err := newMarkerFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.MALFORMED_MARKER.Wrap(err).
			WithMetadata(errors.MarkerMetadata{Script: hex.EncodeToString(script)})
	}
	return m, nil
}

// NewMarkerFromString parses a hex-encoded marker output script.
func NewMarkerFromString(s string) (*Marker, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid output script format, must be hex")
	}
	return NewMarkerFromScript(buf)
}

// IsMarkerScript returns whether the script is a well-formed marker output.
func IsMarkerScript(script []byte) bool {
	_, err := NewMarkerFromScript(script)
	return err == nil
}

// hasMarkerTag returns whether the script is an OP_RETURN whose data starts
// with the marker tag, regardless of the payload being well formed.
func hasMarkerTag(script []byte) bool {
	if len(script) < 2 || script[0] != txscript.OP_RETURN {
		return false
	}
	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	if !tokenizer.Next() {
		return false
	}
	return bytes.HasPrefix(tokenizer.Data(), MarkerTag)
}

// Serialize encodes the marker payload.
func (m Marker) Serialize() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	w := bytes.NewBuffer(nil)
	if _, err := w.Write(MarkerTag); err != nil {
		return nil, fmt.Errorf("failed to serialize marker tag: %w", err)
	}
	if err := writeUint16LE(w, MarkerVersion); err != nil {
		return nil, fmt.Errorf("failed to serialize marker version: %w", err)
	}
	if err := writeUvarint(w, uint64(len(m.Quantities))); err != nil {
		return nil, fmt.Errorf("failed to serialize quantity count: %w", err)
	}
	for _, q := range m.Quantities {
		if err := writeUvarint(w, q); err != nil {
			return nil, fmt.Errorf("failed to serialize quantity: %w", err)
		}
	}
	if err := writeVarBytes(w, m.Metadata); err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return w.Bytes(), nil
}

// Script encodes the marker as a complete OP_RETURN output script.
func (m Marker) Script() ([]byte, error) {
	payload, err := m.Serialize()
	if err != nil {
		return nil, err
	}
	return txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData(payload).Script()
}

// TxOut returns the marker as a zero-value transaction output.
func (m Marker) TxOut() (*wire.TxOut, error) {
	script, err := m.Script()
	if err != nil {
		return nil, fmt.Errorf("failed to build marker script: %w", err)
	}
	return wire.NewTxOut(0, script), nil
}

// String returns the hex-encoded marker output script.
func (m Marker) String() string {
	// nolint
	buf, _ := m.Script()
	return hex.EncodeToString(buf)
}

func (m Marker) validate() error {
	for i, q := range m.Quantities {
		if q > MaxAssetQuantity {
			return errors.INVALID_QUANTITY.New(
				"quantity at index %d exceeds max %d", i, MaxAssetQuantity,
			).WithMetadata(errors.QuantityMetadata{Quantity: q, Max: MaxAssetQuantity})
		}
	}
	return nil
}

func newMarkerFromReader(r *bytes.Reader) (*Marker, error) {
	tag := make([]byte, len(MarkerTag))
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, fmt.Errorf("missing marker tag")
	}
	if !bytes.Equal(tag, MarkerTag) {
		return nil, fmt.Errorf("invalid marker tag, got %x want %x", tag, MarkerTag)
	}

	version, err := readUint16LE(r)
	if err != nil {
		return nil, fmt.Errorf("missing marker version")
	}
	if version != MarkerVersion {
		return nil, fmt.Errorf("invalid marker version, got %d want %d", version, MarkerVersion)
	}

	count, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity count: %w", err)
	}
	// every quantity takes at least one byte
	if count > uint64(r.Len()) {
		return nil, fmt.Errorf(
			"declared quantity count %d exceeds remaining %d bytes", count, r.Len(),
		)
	}

	quantities := make([]uint64, 0, count)
	for i := range count {
		q, err := readUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity at index %d: %w", i, err)
		}
		if q > MaxAssetQuantity {
			return nil, fmt.Errorf("quantity at index %d overflows max %d", i, MaxAssetQuantity)
		}
		quantities = append(quantities, q)
	}

	metadata, err := readVarBytes(r)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	// Make sure we read the entire payload with no extra bytes left
	if r.Len() > 0 {
		return nil, fmt.Errorf("invalid marker length, left %d unknown bytes to read", r.Len())
	}

	return &Marker{Quantities: quantities, Metadata: metadata}, nil
}

// rawPayloadFromScript extracts the single data push following OP_RETURN.
func rawPayloadFromScript(script []byte) ([]byte, error) {
	if len(script) <= 0 {
		return nil, fmt.Errorf("missing output script")
	}
	if script[0] != txscript.OP_RETURN {
		return nil, fmt.Errorf("OP_RETURN not found in output script")
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	if !tokenizer.Next() {
		if err := tokenizer.Err(); err != nil {
			return nil, fmt.Errorf("invalid OP_RETURN output script: %w", err)
		}
		return nil, fmt.Errorf("missing OP_RETURN data")
	}
	if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
		return nil, fmt.Errorf("OP_RETURN must be followed by a data push")
	}
	payload := tokenizer.Data()
	if len(payload) <= 0 {
		return nil, fmt.Errorf("missing OP_RETURN data")
	}
	if tokenizer.Next() {
		return nil, fmt.Errorf("unexpected opcodes after marker payload")
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("invalid OP_RETURN output script: %w", err)
	}
	return payload, nil
}
