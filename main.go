package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/t0mac0/marytts/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
