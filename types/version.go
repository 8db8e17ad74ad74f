package types

// Version is the canonical project version.
// The CLI, the archive record schema and adapter payloads share this version.
const Version = "0.3.0"
