// Package main implements the executor binary.
//
//  executor start --config executor.yaml
//  executor journal --db executor.db
package main

import (
	"os"

	"go.dedis.ch/executor"
)

func main() {
	err := newApp(nil, os.Stdout).Run(os.Args)
	if err != nil {
		executor.Logger.Fatal().Err(err).Msg("executor failed")
	}
}
