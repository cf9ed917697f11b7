//go:build cgo_sqlite

package sessions

// The cgo_sqlite tag swaps in the cgo driver for deployments that want the
// upstream SQLite library.
import _ "github.com/mattn/go-sqlite3"

const sqliteDriverName = "sqlite3"
