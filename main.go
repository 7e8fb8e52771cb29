package main

import "github.com/vigil-switch/vigil/cmd"

func main() {
	cmd.Execute()
}
