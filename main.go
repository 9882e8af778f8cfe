package main

import "github.com/ashgrove/replistore/cmd"

func main() {
	cmd.Execute()
}
