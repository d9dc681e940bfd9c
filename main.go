package main

import "github.com/roostbot/roost/cmd"

func main() {
	cmd.Execute()
}
