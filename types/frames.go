package types

// PayloadKind identifies which frame family a payload belongs to.
type PayloadKind string

// Payload kinds on the Aetheric Engine wire.
const (
	PayloadASCII  PayloadKind = "ascii"
	PayloadBinary PayloadKind = "binary"
)

// Discard reasons reported with every DiscardEvent.
const (
	ReasonTooShort          = "too short"
	ReasonNonPrintable      = "non-printable/marker byte"
	ReasonTooLong           = "too long"
	ReasonInsufficientDisk  = "insufficient disk space"
	ReasonSpoolOpenFailed   = "spool open failed"
	ReasonSpoolWriteFailed  = "spool write failed"
	ReasonSpoolCommitFailed = "spool commit failed"
)

// ASCIIFrame is a validated text frame.
type ASCIIFrame struct {
	Text string
}

// BinaryFrame is a binary payload committed to its final spool path.
type BinaryFrame struct {
	// FinalPath is the spool path with the temporary suffix stripped.
	FinalPath string
	// ChecksumHex is the lowercase hex SHA-256 of the payload.
	ChecksumHex string
	// Size is the number of payload bytes written.
	Size uint64
}

// DiscardEvent describes a rejected or invalid frame.
// It is informational only; discarded frames are never retried.
type DiscardEvent struct {
	// Preview holds at most the first 15 payload bytes.
	Preview []byte
	Kind    PayloadKind
	// DeclaredLength is the frame's total payload length: the header's
	// decoded length for binary frames, the scanned length for ASCII frames.
	DeclaredLength uint64
	Reason         string
}
