package main

import (
	"os"

	"github.com/birbparty/shelf/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
