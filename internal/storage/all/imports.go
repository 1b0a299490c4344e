// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// each backend, which register their Opener with the storage package:
//
//   - "postgres" (insuraflow/internal/storage/postgres)
//   - "mssql"    (insuraflow/internal/storage/mssql)
//   - "sqlite"   (insuraflow/internal/storage/sqlite)
//   - "mysql"    (insuraflow/internal/storage/mysql)
//
// A binary that needs only a subset can import those backends directly
// instead.
package all

import (
	_ "insuraflow/internal/storage/mssql"
	_ "insuraflow/internal/storage/mysql"
	_ "insuraflow/internal/storage/postgres"
	_ "insuraflow/internal/storage/sqlite"
)
