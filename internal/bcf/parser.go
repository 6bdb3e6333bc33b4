package bcf

import (
	"github.com/annel0/voxel-engine/internal/cube"
)

// Parse декодирует BCF-буфер в дерево кубов.
//
// Узлы, на которые указывают несколько указателей, декодируются один раз
// и разделяются в результирующем дереве. Обходы дерева посещают общий узел
// по разу на каждую ссылку, поэтому число узлов после раскрытия ограничено
// MaxExpandedNodes; при превышении возвращается *NodeLimitError.
func Parse(data []byte) (*cube.Cube, error) {
	r := NewReader(data)
	header, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	p := parser{r: r, memo: make(map[int]parsedNode)}
	c, _, err := p.parseNode(header.RootOffset, 0)
	return c, err
}

type parsedNode struct {
	cube *cube.Cube
	// expanded - число узлов поддерева с учетом повторных ссылок
	expanded int
}

type parser struct {
	r    Reader
	memo map[int]parsedNode
}

func (p *parser) parseNode(offset, depth int) (*cube.Cube, int, error) {
	if depth >= MaxRecursionDepth {
		return nil, 0, &RecursionLimitError{MaxDepth: MaxRecursionDepth}
	}
	if n, ok := p.memo[offset]; ok {
		return n.cube, n.expanded, nil
	}

	node, err := p.r.ReadNodeAt(offset)
	if err != nil {
		return nil, 0, err
	}

	var c *cube.Cube
	expanded := 1
	switch node.Kind {
	case NodeInlineLeaf, NodeExtendedLeaf:
		c = cube.Solid(node.Value)
	case NodeOctaLeaves:
		var children [8]*cube.Cube
		for i, v := range node.Values {
			children[i] = cube.Solid(v)
		}
		c = cube.Cubes(children)
		expanded += 8
	case NodeOctaPointers:
		var children [8]*cube.Cube
		for i, ptr := range node.Pointers {
			child, n, err := p.parseNode(ptr, depth+1)
			if err != nil {
				return nil, 0, err
			}
			children[i] = child
			expanded += n
			if expanded > MaxExpandedNodes {
				return nil, 0, &NodeLimitError{Limit: MaxExpandedNodes}
			}
		}
		c = cube.Cubes(children)
	}

	p.memo[offset] = parsedNode{cube: c, expanded: expanded}
	return c, expanded, nil
}
