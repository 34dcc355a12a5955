package main

import "github.com/b-cal/apiserver/cmd"

func main() {
	cmd.Execute()
}
