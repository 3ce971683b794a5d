package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := Execute(context.Background())
	if err == nil {
		os.Exit(exitSucceeded)
	}

	var coded *exitError
	if errors.As(err, &coded) {
		if coded.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", coded.err)
		}
		os.Exit(coded.code)
	}

	// Anything not wrapped in an exitError came out of flag or argument
	// parsing before a command ran.
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitUsage)
}
