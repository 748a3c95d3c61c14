package main

import "github.com/jayteealao/gitsvc/cmd"

func main() {
	cmd.Execute()
}
