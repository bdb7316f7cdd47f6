// Package config defines the declarative SNS/SQS topology model and its
// parsers. A topology maps queue logical names to the set of topics each
// queue must be subscribed to; the reserved key "unsubscribed" holds
// topics that are created without a queue or subscription.
//
// Topology data is accepted as JSON or YAML, either inline, from a file,
// or from a cluster ConfigMap (see package cluster). Logical names are
// environment-independent; suffixing happens in package envtag.
package config
