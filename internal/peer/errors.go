package peer

import "errors"

// Sentinel errors for ledger execution. Execution failures surface to
// clients as pipeline rejection reasons, not transport errors.
var (
	// ErrNotFound indicates an instruction or query referenced an entity
	// that is not registered.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists indicates a Register for an entity id already in use.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrNotMintable indicates a Mint against a definition registered with
	// mintable=false.
	ErrNotMintable = errors.New("asset definition is not mintable")

	// ErrTypeMismatch indicates an amount whose value type differs from the
	// definition's declared type.
	ErrTypeMismatch = errors.New("asset value type mismatch")

	// ErrInsufficientBalance indicates a Burn or Transfer exceeding the
	// source balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverflow indicates a Mint or Transfer whose result exceeds the
	// value type's range.
	ErrOverflow = errors.New("balance overflow")

	// ErrUnsupported indicates an instruction shape the peer does not
	// execute, such as deferred expression operands.
	ErrUnsupported = errors.New("unsupported instruction shape")

	// ErrBadSignature indicates an envelope whose signatures do not verify
	// or whose signer is not a registered signatory of the account.
	ErrBadSignature = errors.New("signature verification failed")
)
