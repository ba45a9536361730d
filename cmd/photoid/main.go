package main

import "go-photoid/cmd/photoid/cmd"

func main() {
	cmd.Execute()
}
