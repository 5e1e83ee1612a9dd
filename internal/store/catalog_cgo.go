package store

// The cgo driver registers itself as "sqlite3". Without cgo it still links
// but fails at open time, so DriverCGO needs CGO_ENABLED=1.
import _ "github.com/mattn/go-sqlite3"
