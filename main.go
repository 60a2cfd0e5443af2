package main

import "github.com/dayuer/onebot-bridge/cmd"

func main() {
	cmd.Execute()
}
