package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/config"
	"github.com/erinfolamirukayat/theweddingplace/internal/migration"
	"github.com/erinfolamirukayat/theweddingplace/internal/observability"
	"github.com/erinfolamirukayat/theweddingplace/internal/server"
	"github.com/erinfolamirukayat/theweddingplace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
