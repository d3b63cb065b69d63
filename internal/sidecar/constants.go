package sidecar

import "time"

// DefaultHandshakeTimeout bounds how long Start waits for the sidecar to
// report {"status":"ready"} on its stdout before giving up and killing it.
const DefaultHandshakeTimeout = 60 * time.Second

// QuitGrace is how long Close waits after sending the quit command before
// force-killing the child process.
const QuitGrace = 500 * time.Millisecond

// maxLineBytes bounds a single JSON-RPC line; a sidecar that writes more
// than this without a newline is treated as a protocol error rather than
// growing the scanner buffer without limit.
const maxLineBytes = 16 * 1024 * 1024
