// cmd/beep/main.go
package main

import "github.com/tamzrod/potentiostat/cmd/beep/cmd"

func main() {
	cmd.Execute()
}
