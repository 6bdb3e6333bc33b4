package bcf

// Info - сводка по BCF-буферу без построения дерева
type Info struct {
	Header        Header           `json:"header"`
	Size          int              `json:"size"`
	NodeCounts    map[string]int   `json:"node_counts"`
	PointerWidths map[int]int      `json:"pointer_widths"`
	MaxDepth      int              `json:"max_depth"`
	UniqueNodes   int              `json:"unique_nodes"`
	Materials     map[uint8]uint64 `json:"-"`
}

// Inspect обходит узлы буфера, считая типы узлов и ширины указателей.
// Каждое смещение учитывается один раз.
func Inspect(data []byte) (Info, error) {
	r := NewReader(data)
	header, err := r.ReadHeader()
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Header:        header,
		Size:          len(data),
		NodeCounts:    make(map[string]int),
		PointerWidths: make(map[int]int),
		Materials:     make(map[uint8]uint64),
	}
	seen := make(map[int]bool)
	if err := inspectNode(r, header.RootOffset, 0, seen, &info); err != nil {
		return Info{}, err
	}
	info.UniqueNodes = len(seen)
	return info, nil
}

func inspectNode(r Reader, offset, depth int, seen map[int]bool, info *Info) error {
	if depth >= MaxRecursionDepth {
		return &RecursionLimitError{MaxDepth: MaxRecursionDepth}
	}
	if depth > info.MaxDepth {
		info.MaxDepth = depth
	}
	if seen[offset] {
		return nil
	}
	node, err := r.ReadNodeAt(offset)
	if err != nil {
		return err
	}
	seen[offset] = true
	info.NodeCounts[node.Kind.String()]++

	switch node.Kind {
	case NodeInlineLeaf, NodeExtendedLeaf:
		info.Materials[node.Value]++
	case NodeOctaLeaves:
		if depth+1 > info.MaxDepth {
			info.MaxDepth = depth + 1
		}
		for _, v := range node.Values {
			info.Materials[v]++
		}
	case NodeOctaPointers:
		info.PointerWidths[1<<node.SSSS]++
		for _, p := range node.Pointers {
			if err := inspectNode(r, p, depth+1, seen, info); err != nil {
				return err
			}
		}
	}
	return nil
}
