package main

import "github.com/OKaluzny/devicewallet/cmd/walletctl/cmd"

func main() {
	cmd.Execute()
}
