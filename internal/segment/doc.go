// Package segment accumulates raw microphone frames between context
// updates and gates them on signal activity, so that silence is never
// uploaded to the collaborator.
package segment
