package main

import "github.com/ValentinKolb/rfwd/cmd"

func main() {
	cmd.Execute()
}
