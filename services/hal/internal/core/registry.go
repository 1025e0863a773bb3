package core

import (
	"sort"
	"strings"
	"sync"
)

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder is called from device package init functions.
func RegisterBuilder(typ string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[typ]; exists {
		panic("duplicate device builder: " + typ)
	}
	builders[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[typ]
	return b, ok
}

// builderTypes lists registered types, comma separated, for diagnostics.
func builderTypes() string {
	regMu.RLock()
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	regMu.RUnlock()
	sort.Strings(out)
	return strings.Join(out, ",")
}
