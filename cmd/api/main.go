package main

import "github.com/kaiser100010/grc-system-sub002/cmd/api/cmd"

func main() {
	cmd.Execute()
}
