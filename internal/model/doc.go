// Package model implements the HTTP client for the language model
// collaborator. The client maintains a rolling token context on the remote
// side by uploading segmented audio, requests text continuations from that
// context, and synthesizes short text into phase-domain audio frames.
package model
