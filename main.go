package main

import "github.com/nextlevelbuilder/hiveclaw/cmd"

func main() {
	cmd.Execute()
}
