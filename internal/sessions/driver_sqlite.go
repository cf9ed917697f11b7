//go:build !cgo_sqlite

package sessions

// The default build uses the cgo-free SQLite driver so the binary needs no
// C toolchain.
import _ "modernc.org/sqlite"

const sqliteDriverName = "sqlite"
