package main

import "github.com/yearlog/yearlog/internal/cmd"

func main() {
	cmd.Execute()
}
