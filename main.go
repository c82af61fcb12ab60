package main

import "yatra-planner-cli/cmd"

func main() {
	cmd.Execute()
}
