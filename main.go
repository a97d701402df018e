package main

import "github.com/Tiliavir/diary-migrate/cmd"

func main() {
	cmd.Execute()
}
