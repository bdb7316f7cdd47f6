// Package provision contains the reconciliation core: idempotent
// create-or-adopt provisioners for SNS topics, SQS queues, and
// topic-to-queue subscriptions, and the engine that fans them out
// concurrently over a declared topology.
//
// Every leaf operation yields exactly one recorded outcome. A failing
// leaf never cancels its siblings; the engine aggregates the outcomes
// into a single summary whose failure count drives the process exit
// code. The only automatically recovered condition is the
// queue-name-exists race during creation, which is resolved by adopting
// the existing queue.
package provision
