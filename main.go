package main

import (
	"os"

	"github.com/slidetrans/slidetrans/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
