package main

import "github.com/cbhirsch/real-estate-agent-chatbot/cmd"

func main() {
	cmd.Execute()
}
