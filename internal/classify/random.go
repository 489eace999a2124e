package classify

import (
	"context"
	"math/rand/v2"
	"sync"
)

// RandomModel is the model name that selects the uniform random baseline.
const RandomModel = "random"

// RandomClassifier picks a label uniformly at random. It is the baseline
// the language model is evaluated against.
type RandomClassifier struct {
	labels LabelSet

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomClassifier creates a baseline seeded with seed.
func NewRandomClassifier(labels LabelSet, seed uint64) *RandomClassifier {
	return &RandomClassifier{
		labels: labels,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Classify ignores text and returns a random label.
func (c *RandomClassifier) Classify(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	i := c.rng.IntN(len(c.labels.Labels))
	c.mu.Unlock()
	return c.labels.Labels[i].Name, nil
}
