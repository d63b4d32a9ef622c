// Package model defines the core data structures shared by dlcollect.
//
// This package contains the following main types:
//   - Tab and Document: one open tab and the document captured from it
//   - LinkRecord: a single matching download link
//   - TabResult: the links found in one tab, in document order
//   - AggregateOutcome: the summarized result of one collection run
//   - CollectRequest and Message: the request/response pair exchanged
//     between the controller and the tab orchestrator
//
// Models live in their own package so that the scanner, collector,
// controller, report and database packages can share them without
// import cycles. All of them serialize to JSON for reports, the relay
// server and the run history.
package model
