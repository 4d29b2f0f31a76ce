// Package extract turns the text of a statement page into transactions and
// header metadata.
package extract

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// Layout recognizes one statement format. Implementations must be safe for
// concurrent use.
type Layout interface {
	Name() string
	Transactions(text string) []domain.Transaction
	Metadata(text string) domain.DocumentMetadata
}

// JoinBlocks joins page text blocks in reading order, one per line.
func JoinBlocks(texts []string) string {
	return strings.Join(texts, "\n")
}

var (
	mu      sync.RWMutex
	layouts = map[string]Layout{}
)

// Register makes a layout available by name. Registering the same name twice
// panics.
func Register(l Layout) {
	mu.Lock()
	defer mu.Unlock()

	name := l.Name()
	if _, dup := layouts[name]; dup {
		panic(fmt.Sprintf("extract: layout %q registered twice", name))
	}
	layouts[name] = l
}

// Lookup returns the layout registered under name.
func Lookup(name string) (Layout, error) {
	mu.RLock()
	defer mu.RUnlock()

	l, ok := layouts[name]
	if !ok {
		return nil, fmt.Errorf("unknown statement layout %q (available: %s)", name, strings.Join(namesLocked(), ", "))
	}
	return l, nil
}

// Names lists registered layouts in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(USDStatement{})
}
