package abiroot

// MessageType discriminates the signing-root shape, prepended as a tagged
// uint256 ahead of most encodings (spec §4.3).
type MessageType uint8

const (
	MessageTypeReserved     MessageType = 0
	MessageTypeRegistration MessageType = 1
	MessageTypeDelegation   MessageType = 2
	MessageTypeCommitment   MessageType = 3
	MessageTypeConstraints  MessageType = 4
)

// Uint256 returns the message type as the Value used as the leading
// argument in abi.encode(tag, {...}).
func (m MessageType) Uint256() Value {
	return Uint256Value(uint64(m))
}
