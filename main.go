package main

import (
	"fmt"
	"os"

	"fhartmann/bonscan/cmd/export"
	"fhartmann/bonscan/cmd/history"
	"fhartmann/bonscan/cmd/process"
	"fhartmann/bonscan/cmd/reconcile"
	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/cmd/watch"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(reconcile.Cmd)
	root.Cmd.AddCommand(process.Cmd)
	root.Cmd.AddCommand(watch.Cmd)
	root.Cmd.AddCommand(export.Cmd)
	root.Cmd.AddCommand(history.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
