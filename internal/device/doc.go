// Package device manages the microphone and speaker lifecycle through
// PortAudio: device enumeration with default fallback, bounded open retries
// with backoff, exact fixed-size blocking reads/writes at the hardware
// cadence, and single release of all handles on shutdown.
package device
