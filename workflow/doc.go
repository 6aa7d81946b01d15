// Package workflow implements the procurement pipeline: a staged run that
// turns a free-text request into a ranked supplier recommendation.
//
// A run advances through discovery, parallel negotiation, compliance review
// and logistics planning before ranking the surviving options. Individual
// supplier failures degrade the result instead of aborting it; only a
// failed bill-of-materials generation kills a run. Every externally visible
// action is appended to the run's step log, which can also be consumed as a
// live stream via ExecuteStream.
package workflow
