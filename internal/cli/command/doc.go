// Package command defines the moonlink CLI on urfave/cli/v2.
//
// Global flags are loaded into a config.Config in the App's Before hook.
// Each command then opens a client.Client, runs one operation and closes
// it again; only watch stays up until interrupted.
package command
