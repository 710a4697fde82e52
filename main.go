package main

import "github.com/yz4230/shipit-poc/cmd"

func main() {
	cmd.Execute()
}
