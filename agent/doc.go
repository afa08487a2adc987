// Package agent contains the long-running agents of the pipeline: the news
// scanner and site monitor source agents, the incident analysis agent that
// runs the verification workflows and periodic jobs, and the conversational
// agent that relays external questions onto the bus.
package agent
