package main

import "dwbuild/cmd"

func main() {
	cmd.Execute()
}
