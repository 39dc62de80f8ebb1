/*
Copyright © 2026 Paulo Suderio
*/
package main

import "github.com/suderio/skirmish/cmd"

func main() {
	cmd.Execute()
}
