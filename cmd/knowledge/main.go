// Package main is the entry point for the FinSight knowledge service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/finsight-io/finsight/cmd/knowledge/app"
)

func main() {
	app.NewApp().Run()
}
