package stream

import (
	"time"

	"github.com/rzbill/pulse/pkg/id"
)

// Point is a single datum in a stream. Points are immutable once appended;
// the registry clones producer-supplied metadata at append time so later
// mutation by the producer cannot reach the buffer or subscribers.
type Point struct {
	ID        id.ID             `json:"id"`
	Value     any               `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
