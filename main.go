package main

import "github.com/picbest/picbest/cmd"

func main() {
	cmd.Execute()
}
