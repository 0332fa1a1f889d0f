package main

import "rentalportal/internal/cli"

func main() {
	cli.Execute()
}
