// Package cmd contains the CLI commands for the schedassist server.
package cmd
