// Package engine orchestrates the real-time feedback loop: an audio I/O
// loop that transforms each microphone frame through the phase codec and
// mixes in history feedback, prediction, and synthesized model audio; a
// periodic context loop that feeds segmented audio to the collaborator and
// collects text continuations; and an interactive control loop that adjusts
// mixing levels from single-key commands. The three loops share cancellation
// and shut down cooperatively.
package engine
