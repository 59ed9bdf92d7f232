package main

import "github.com/vietddude/supervisor/internal/cli"

func main() {
	cli.Execute()
}
