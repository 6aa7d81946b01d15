// Package protocol defines the shared data contracts exchanged between the
// registry, the negotiation learner, the workflow engine and external
// collaborators: agent identity records with trust profiles, RFQ/Quote
// negotiation payloads, bill-of-materials structures, compliance and
// logistics results, the A2A message envelope and the common error taxonomy.
//
// The package carries no behavior beyond construction, validation and
// derived-value helpers; all orchestration logic lives in the consuming
// packages.
package protocol
