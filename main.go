package main

import "github.com/encodeous/dvhop/cmd"

func main() {
	cmd.Execute()
}
