// Command voyage sends embedding and rerank requests from the shell.
//
//	voyage embed --text "hello"
//	voyage rerank --query "capital of france" --document Paris --document Berlin
//	voyage similarity "cat" "kitten"
//
// The API key is read from VOYAGE_API_KEY or a credentials.toml file.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
