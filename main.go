package main

import (
	"os"

	"honeyseeker/app"
)

func main() {
	os.Exit(app.Run())
}
