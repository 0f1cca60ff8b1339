package main

import "tempo-bot/cmd/tempoctl/arg"

func main() {
	arg.Execute()
}
