// Package cli translates command-line arguments into an app.Config and owns
// the process exit-code contract.
package cli
