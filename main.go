package main

import "github.com/theirongolddev/budgetbox/cmd"

func main() {
	cmd.Execute()
}
