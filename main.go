package main

import "github.com/genomehub/metareg/cmd"

func main() {
	cmd.Execute()
}
