package config

// UnsubscribedKey is the reserved queue name meaning "create these topics
// only; do not create a queue or subscribe anything". It is matched
// case-sensitively.
const UnsubscribedKey = "unsubscribed"

// QueueSpec describes the topics one queue must be subscribed to.
// Topic names are logical: the environment suffix is never written in
// configuration.
type QueueSpec struct {
	Topics []string `json:"topics" yaml:"topics" validate:"dive,required"`
}

// Topology maps queue logical names to their specs. Keys are unique by
// construction; insertion order carries no meaning.
type Topology map[string]QueueSpec

// IsSentinel reports whether the queue name is the reserved
// topics-only key.
func IsSentinel(queueName string) bool {
	return queueName == UnsubscribedKey
}

// TopicCount returns the total number of topic references across all
// queue specs. Used for sizing work fan-out.
func (t Topology) TopicCount() int {
	n := 0
	for _, spec := range t {
		n += len(spec.Topics)
	}
	return n
}
