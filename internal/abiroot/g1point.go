package abiroot

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"

	"github.com/eth-fabric/fabric/internal/types"
)

// ErrInvalidPubKey is returned when a compressed BLS public key fails to
// decompress to a valid G1 point.
var ErrInvalidPubKey = errors.New("abiroot: invalid BLS public key")

// G1Point is the on-chain BLS precompile's affine G1 representation: each
// 48-byte big-endian field element split into high/low 256-bit halves
// (spec §4.3): XA/XB are the X coordinate's high/low halves, YA/YB the Y
// coordinate's.
type G1Point struct {
	XA, XB, YA, YB [32]byte
}

// ToValue returns the ABI tuple value for this point: four static bytes32
// words, always static (a G1Point never contains a dynamic field).
func (p G1Point) ToValue() Value {
	return TupleValue{Fields: []Value{
		Bytes32Value(p.XA),
		Bytes32Value(p.XB),
		Bytes32Value(p.YA),
		Bytes32Value(p.YB),
	}}
}

// splitFieldElement splits a 48-byte big-endian BLS12-381 field element
// into (high, low) 32-byte halves: high holds the element's most
// significant 16 bytes zero-extended on the left, low holds the least
// significant 32 bytes verbatim.
func splitFieldElement(fp [48]byte) (high, low [32]byte) {
	copy(high[16:], fp[0:16])
	copy(low[:], fp[16:48])
	return
}

// ConvertPubKeyToG1Point decompresses a 48-byte compressed BLS public key
// and splits its affine coordinates into the on-chain G1Point layout.
func ConvertPubKeyToG1Point(pub types.BLSPubKey) (G1Point, error) {
	var p blst.P1Affine
	if p.Uncompress(pub[:]) == nil {
		return G1Point{}, ErrInvalidPubKey
	}
	ser := p.Serialize() // 96 bytes: X(48) || Y(48), big-endian
	var x, y [48]byte
	copy(x[:], ser[0:48])
	copy(y[:], ser[48:96])

	xHigh, xLow := splitFieldElement(x)
	yHigh, yLow := splitFieldElement(y)
	return G1Point{XA: xHigh, XB: xLow, YA: yHigh, YB: yLow}, nil
}
