package main

import (
	"github.com/kg-audit/weaver/backend/internal/server"
	"github.com/kg-audit/weaver/backend/internal/util"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
