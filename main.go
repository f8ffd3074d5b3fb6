package main

import "github.com/facefind/facefind/cmd"

func main() {
	cmd.Execute()
}
