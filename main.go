package main

import "subtitle-fusion/cmd"

func main() {
	cmd.Execute()
}
