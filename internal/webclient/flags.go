package webclient

// Flags is the per-slot state bitset. The groups below are cleared at
// different points of the lifecycle: the transfer flags other than the TLS
// wait bits, and the two tracking policy flags, on every request done; path
// flags additionally before each routing pass; FlagTLSForce and
// FlagUnixSocket only when the slot is taken for a new connection.
type Flags uint32

const (
	// transfer flags
	FlagKeepAlive Flags = 1 << iota
	FlagChunkedTransfer
	FlagWaitReceive
	FlagWaitSend
	// TLS variants of the wait bits: the encrypted stream may demand the
	// opposite direction of the operation that blocked.
	FlagTLSWaitReceive
	FlagTLSWaitSend

	// policy flags
	FlagDoNotTrack
	FlagTrackingRequired
	FlagTLSForce
	FlagUnixSocket

	// path flags
	FlagPathWithVersion
	FlagPathIsV0
	FlagPathIsV1
	FlagPathIsV2
	FlagPathTrailingSlash
	FlagPathFileExtension
)

const pathFlagsMask = FlagPathWithVersion |
	FlagPathIsV0 | FlagPathIsV1 | FlagPathIsV2 |
	FlagPathTrailingSlash | FlagPathFileExtension

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

func (f *Flags) Set(flag Flags) {
	*f |= flag
}

func (f *Flags) Clear(flag Flags) {
	*f &^= flag
}
