// Package pipeline runs accepted step operations in the background.
//
// # Lifecycle
//
// Accept validates a StepCall, records an Operation in the accepted state
// and returns its identifier immediately. A goroutine per operation then
// moves it forward only:
//
//	accepted -> running -> succeeded | failed
//
// The executor runs under the execution timeout. Intermediate results a
// processor emits are delivered, in order, before the final payload. The
// final payload is delivered exactly once for every accepted operation,
// whether it succeeded or failed.
//
// # Alerts
//
// A failed operation and a final delivery that exhausts its retries each
// raise one operator alert. Alerts never change the operation outcome.
//
// # Shutdown
//
// Shutdown rejects new operations with ErrShuttingDown and waits for the
// in-flight ones. Operations still running when its context expires are
// failed as unavailable and their final payloads are still attempted.
package pipeline
