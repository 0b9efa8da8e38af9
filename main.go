package main

import "github.com/iksnae/chef-chat/cmd"

func main() {
	cmd.Execute()
}
