// cmd/dafit/main.go
package main

import (
	"dafit/internal/app"
	"dafit/internal/appshell"
)

func main() {
	appshell.Main("dafit", app.RunContext)
}
