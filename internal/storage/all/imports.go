// Package all wires every built-in warehouse backend into the storage
// registry. Import it for side effects only:
//
//	import _ "github.com/znumunz/pram2/internal/storage/all"
//
// A binary that needs fewer drivers can blank-import individual backends
// instead.
package all

import (
	_ "github.com/znumunz/pram2/internal/storage/duckdb"
	_ "github.com/znumunz/pram2/internal/storage/mssql"
	_ "github.com/znumunz/pram2/internal/storage/mysql"
	_ "github.com/znumunz/pram2/internal/storage/postgres"
	_ "github.com/znumunz/pram2/internal/storage/sqlite"
)
