// Package main provides the CLI entrypoint for sniclient.
package main

func main() {
	Execute()
}
