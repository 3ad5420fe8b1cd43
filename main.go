package main

import "github.com/salchaD-27/pipeline-check/cmd"

func main() {
	cmd.Execute()
}
