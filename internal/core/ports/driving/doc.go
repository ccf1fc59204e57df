// Package driving defines the inbound ports of the retrieval core:
// the interfaces consumers (CLI, agent, webapp) call.
package driving
