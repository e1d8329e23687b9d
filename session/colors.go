package session

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
)

// ColorAssigner 玩家颜色只用于展示，放在会话数据之外
type ColorAssigner interface {
	Assign(playerID string) string
	All() map[string]string
	Reset()
}

type ColorTable struct {
	mu     sync.Mutex
	rng    *rand.Rand
	colors map[string]string
}

func NewColorTable(seed uint64) *ColorTable {
	return &ColorTable{
		rng:    rand.New(rand.NewSource(seed)),
		colors: make(map[string]string),
	}
}

// Assign 同一玩家在一局内颜色不变
func (t *ColorTable) Assign(playerID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.colors[playerID]; ok {
		return c
	}
	c := fmt.Sprintf("#%06x", t.rng.Intn(0x1000000))
	t.colors[playerID] = c
	return c
}

func (t *ColorTable) All() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.colors))
	for k, v := range t.colors {
		out[k] = v
	}
	return out
}

func (t *ColorTable) Reset() {
	t.mu.Lock()
	t.colors = make(map[string]string)
	t.mu.Unlock()
}
