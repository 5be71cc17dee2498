package main

import (
	"os"

	"github.com/mrsingh-rishi/voice-expense/cmd/voiceexpense"
)

func main() {
	voiceexpense.Run(os.Args[1:])
}
