package main

import "github.com/vietddude/crosspost/internal/cli"

func main() {
	cli.Execute()
}
