// Command liquidview renders Liquid templates from the command line and
// serves a template directory over HTTP.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
