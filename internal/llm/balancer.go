package llm

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Balancer picks which configured endpoint serves the next completion
type Balancer interface {
	Next(endpoints []string) string
	Name() string
}

func NewBalancer(name string) (Balancer, error) {
	switch name {
	case "round-robin", "round_robin", "":
		return &RoundRobin{}, nil
	case "random":
		return NewRandom(), nil
	default:
		return nil, fmt.Errorf("unknown endpoint balancer: %s", name)
	}
}

type RoundRobin struct {
	mu      sync.Mutex
	current int
}

func (r *RoundRobin) Next(endpoints []string) string {
	if len(endpoints) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint := endpoints[r.current%len(endpoints)]
	r.current++

	return endpoint
}

func (r *RoundRobin) Name() string {
	return "round_robin"
}

type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom() *Random {
	return &Random{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Random) Next(endpoints []string) string {
	if len(endpoints) == 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return endpoints[r.rng.Intn(len(endpoints))]
}

func (r *Random) Name() string {
	return "random"
}
