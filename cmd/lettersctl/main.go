package main

import (
	"os"

	"coverletter-backend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
