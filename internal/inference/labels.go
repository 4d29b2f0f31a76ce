// Package inference runs token classification over rendered statement pages.
package inference

import "fmt"

// Labels is the fixed BIO label set of the token classifier. The index of a
// label is its id.
var Labels = [...]string{
	"O",
	"B-DATE", "I-DATE",
	"B-DESC", "I-DESC",
	"B-AMOUNT", "I-AMOUNT",
	"B-STATUS", "I-STATUS",
}

// NumLabels is the size of the classification head.
const NumLabels = len(Labels)

var label2id = func() map[string]int {
	m := make(map[string]int, NumLabels)
	for i, l := range Labels {
		m[l] = i
	}
	return m
}()

// ID2Label returns the label name for id.
func ID2Label(id int) (string, bool) {
	if id < 0 || id >= NumLabels {
		return "", false
	}
	return Labels[id], true
}

// Label2ID returns the id of a label name.
func Label2ID(label string) (int, bool) {
	id, ok := label2id[label]
	return id, ok
}

// labelIDs converts label names returned by a model into ids.
func labelIDs(names []string) ([]int, error) {
	ids := make([]int, len(names))
	for i, n := range names {
		id, ok := Label2ID(n)
		if !ok {
			return nil, fmt.Errorf("unknown label %q at position %d", n, i)
		}
		ids[i] = id
	}
	return ids, nil
}
