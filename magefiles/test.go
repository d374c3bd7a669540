//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the test suite twice: release assertions, then with -tags debug.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("test", "-tags", "debug", "./..."), withStream())
	return err
}
