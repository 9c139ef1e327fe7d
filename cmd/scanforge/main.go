package main

import "github.com/scanforge/scanforge/cmd/scanforge/cmd"

func main() {
	cmd.Execute()
}
