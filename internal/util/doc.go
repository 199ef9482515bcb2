// Package util holds helpers shared by tool and agent: JSON schema
// derivation and validation for tool arguments, and instruction templating.
package util
