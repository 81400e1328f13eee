// Package abiroot computes canonical ABI-encoded signing roots for the
// delegation/commitment/constraints protocol, matching the companion
// on-chain ISlasher/IRegistry contracts byte-for-byte (spec §4.3). The
// encoder is a small, purpose-built implementation of the Solidity ABI
// head/tail algorithm for exactly the struct shapes this protocol needs,
// rather than a dependency on accounts/abi's reflection-based Arguments.Pack
// (see DESIGN.md for why).
package abiroot

const wordSize = 32

// Value is one ABI-encodable element, either a top-level argument or a
// tuple/array member. Dynamic values are head-offset + tail-encoded;
// static values are inlined directly into the head.
type Value interface {
	Dynamic() bool
	// Bytes returns the value's own encoding: for a static value this is
	// what goes directly in the head; for a dynamic value this is what
	// goes in the tail (the head instead gets a 32-byte offset word).
	Bytes() []byte
}

// encodeArgs applies the standard ABI head/tail algorithm to an ordered
// list of top-level arguments. This is the same algorithm Solidity uses
// both for abi.encode(args...) and for a tuple/array member list, so it is
// reused recursively by TupleValue and ArrayValue.
func encodeArgs(values []Value) []byte {
	headWords := 0
	for _, v := range values {
		if v.Dynamic() {
			headWords++
		} else {
			headWords += len(v.Bytes()) / wordSize
		}
	}
	headSize := headWords * wordSize

	var head, tail []byte
	for _, v := range values {
		if v.Dynamic() {
			offset := headSize + len(tail)
			head = append(head, encodeUint256(uint64(offset))...)
			tail = append(tail, v.Bytes()...)
		} else {
			head = append(head, v.Bytes()...)
		}
	}
	return append(head, tail...)
}

func encodeUint256(v uint64) []byte {
	b := make([]byte, wordSize)
	putUint64BE(b[wordSize-8:], v)
	return b
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func rightPadToWord(b []byte) []byte {
	rem := len(b) % wordSize
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, wordSize-rem)...)
}

// Uint256Value encodes an unsigned integer as a single 32-byte word.
// Only values representable in a uint64 are needed by this protocol
// (slots, constraint types, message-type tags).
type Uint256Value uint64

func (Uint256Value) Dynamic() bool { return false }
func (v Uint256Value) Bytes() []byte {
	return encodeUint256(uint64(v))
}

// Bytes32Value mirrors a Solidity bytes32 / uint256 that is already
// materialized as 32 bytes (a hash, a BLS coordinate half).
type Bytes32Value [32]byte

func (Bytes32Value) Dynamic() bool { return false }
func (v Bytes32Value) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, v[:])
	return b
}

// AddressValue encodes a 20-byte Ethereum address left-padded to 32 bytes.
type AddressValue [20]byte

func (AddressValue) Dynamic() bool { return false }
func (v AddressValue) Bytes() []byte {
	b := make([]byte, wordSize)
	copy(b[wordSize-20:], v[:])
	return b
}

// BytesValue encodes a Solidity dynamic `bytes` value: length word
// followed by the data, right-padded to a word boundary.
type BytesValue []byte

func (BytesValue) Dynamic() bool { return true }
func (v BytesValue) Bytes() []byte {
	out := encodeUint256(uint64(len(v)))
	out = append(out, rightPadToWord(append([]byte(nil), v...))...)
	return out
}

// TupleValue encodes a Solidity struct: dynamic iff any field is dynamic,
// encoded with the same head/tail algorithm applied to its fields.
type TupleValue struct {
	Fields []Value
}

func (t TupleValue) Dynamic() bool {
	for _, f := range t.Fields {
		if f.Dynamic() {
			return true
		}
	}
	return false
}

func (t TupleValue) Bytes() []byte {
	return encodeArgs(t.Fields)
}

// ArrayValue encodes a Solidity dynamic array: always dynamic regardless
// of its element type, encoded as a length word followed by the elements'
// head/tail-encoded body.
type ArrayValue struct {
	Elements []Value
}

func (ArrayValue) Dynamic() bool { return true }

func (a ArrayValue) Bytes() []byte {
	out := encodeUint256(uint64(len(a.Elements)))
	out = append(out, encodeArgs(a.Elements)...)
	return out
}

// Encode is the entry point: applies the ABI head/tail algorithm to an
// ordered list of top-level arguments, exactly as abi.encode(...) and
// abi.encode_params(...) both do in the companion Solidity/Rust code.
func Encode(args ...Value) []byte {
	return encodeArgs(args)
}
