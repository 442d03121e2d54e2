package ordering

import (
	"errors"
	"fmt"

	"github.com/matzehuels/trajgroups/pkg/perm"
)

// ErrCyclicRelation is returned when the pairwise relation of a layer is not
// a total order.
var ErrCyclicRelation = errors.New("above relation contains a cycle")

// ExtractOrders turns a solved assignment into one order of group indices
// per layer, top to bottom. Each layer's relation is sorted topologically
// with an explicit-stack depth-first search; a cycle means the assignment
// violates transitivity.
func ExtractOrders(m *Model, x []int) (map[int][]int, error) {
	orders := make(map[int][]int, len(m.Inst.Layers))
	for _, layer := range m.Inst.Layers {
		order, err := m.topoSort(x, layer)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", layer, err)
		}
		orders[layer] = order
	}
	return orders, nil
}

const (
	white = iota
	grey
	black
)

func (m *Model) topoSort(x []int, layer int) ([]int, error) {
	present := m.Inst.At(layer)
	color := make(map[int]int, len(present))
	post := make([]int, 0, len(present))

	type frame struct {
		g    int
		next int // index into present of the next successor to visit
	}
	for _, root := range present {
		if color[root] != white {
			continue
		}
		stack := []frame{{g: root}}
		color[root] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(present) {
				color[top.g] = black
				post = append(post, top.g)
				stack = stack[:len(stack)-1]
				continue
			}
			succ := present[top.next]
			top.next++
			if succ == top.g || !m.Above(x, layer, top.g, succ) {
				continue
			}
			switch color[succ] {
			case grey:
				return nil, ErrCyclicRelation
			case white:
				color[succ] = grey
				stack = append(stack, frame{g: succ})
			}
		}
	}

	order := make([]int, len(post))
	for i, g := range post {
		order[len(post)-1-i] = g
	}
	return order, nil
}

// CountCrossings sums, over consecutive layers, the pairs of shared groups
// whose relative order differs.
func CountCrossings(layers []int, orders map[int][]int) int {
	total := 0
	for i := 0; i+1 < len(layers); i++ {
		total += perm.Crossings(orders[layers[i]], orders[layers[i+1]])
	}
	return total
}
