package main

import "github.com/muimaps/muitiles/cmd"

func main() {
	cmd.Execute()
}
