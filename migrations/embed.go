// Package migrations 内嵌各数据库的建表脚本，供 cmd/migrate 使用。
package migrations

import "embed"

// FS 目录结构: {type}/{version}_{name}.{up|down}.sql
//
//go:embed postgres/*.sql mysql/*.sql
var FS embed.FS
