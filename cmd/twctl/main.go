package main

import "tabwarden/cmd/twctl/arg"

func main() {
	arg.Execute()
}
