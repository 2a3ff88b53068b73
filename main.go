package main

import "github.com/bnema/chfctl/cmd"

func main() {
	cmd.Execute()
}
