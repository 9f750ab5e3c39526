package main

import (
	_ "net/http/pprof" // registers /debug/pprof on the default mux
)

func main() {
	startWithDig()
}
