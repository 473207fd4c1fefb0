package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBanner(t *testing.T) {
	assert.NotPanics(t, printBanner)
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "fetch", "preprocess", "resolve", "merge", "upload", "backfill", "serve", "schedule", "version"} {
		assert.Contains(t, names, want)
	}
}
