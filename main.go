package main

import "tuition-receipts-go/cmd"

func main() {
	cmd.Execute()
}
