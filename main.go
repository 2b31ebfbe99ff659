package main

import "github.com/cube2222/arrowpipe/cmd"

func main() {
	cmd.Execute()
}
