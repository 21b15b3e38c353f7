/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/taskapi/taskapi/cmd"

func main() {
	cmd.Execute()
}
