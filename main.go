package main

import "nathanbeddoewebdev/lxdm/cmd"

func main() {
	cmd.Execute()
}
