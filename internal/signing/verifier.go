package signing

// CompositeVerifier combines BLS and ECDSA verification behind the single
// Verifier interface the relay depends on.
type CompositeVerifier struct {
	BLSVerifier
	ECDSAVerifier
}

// NewVerifier constructs the combined verifier used by the relay service.
func NewVerifier() CompositeVerifier {
	return CompositeVerifier{
		BLSVerifier:   NewBLSVerifier(),
		ECDSAVerifier: NewECDSAVerifier(),
	}
}

var _ Verifier = CompositeVerifier{}

// CompositeSigner combines a local BLS signer and a local ECDSA signer
// behind the single Signer interface the gateway depends on.
type CompositeSigner struct {
	*LocalBLSSigner
	*LocalECDSASigner
}

// NewSigner constructs the combined signer used by the gateway service.
func NewSigner(bls *LocalBLSSigner, ecdsa *LocalECDSASigner) CompositeSigner {
	return CompositeSigner{LocalBLSSigner: bls, LocalECDSASigner: ecdsa}
}

var _ Signer = CompositeSigner{}
