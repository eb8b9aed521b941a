// The main package for the douban crawler executable.
package main

import (
	"github.com/saber1015/douban/cmd"
)

func main() {
	cmd.Execute()
}
