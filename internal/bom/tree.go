package bom

import "context"

// treeSource is the read surface expansion needs.
type treeSource interface {
	PartSnapshot(ctx context.Context, partID int64) (PartSnapshot, error)
	ComponentViews(ctx context.Context, parentID int64) ([]EdgeView, error)
}

type treeFrame struct {
	partID int64
	views  []EdgeView
	idx    int
}

// assembleTree expands a part's BOM into a tree. The traversal is an explicit
// iterative depth-first walk so pathological graphs cannot exhaust the call
// stack. A per-path visited set lets the same part appear under different
// branches while a part repeated on its own path (corrupted data) is contained:
// it gets no children and the Truncated flag is set.
func assembleTree(ctx context.Context, src treeSource, partID int64, recursive bool) (Tree, error) {
	root, err := src.PartSnapshot(ctx, partID)
	if err != nil {
		return Tree{}, err
	}
	components, err := src.ComponentViews(ctx, partID)
	if err != nil {
		return Tree{}, err
	}
	tree := Tree{Part: root, Components: components}
	if !recursive || len(components) == 0 {
		return tree, nil
	}

	onPath := map[int64]bool{root.ID: true}
	stack := []*treeFrame{{partID: root.ID, views: components}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		if frame.idx >= len(frame.views) {
			delete(onPath, frame.partID)
			stack = stack[:len(stack)-1]
			continue
		}
		view := &frame.views[frame.idx]
		frame.idx++

		if !view.Part.Type.Expandable() {
			continue
		}
		if onPath[view.Part.ID] {
			tree.Truncated = true
			continue
		}
		children, err := src.ComponentViews(ctx, view.Part.ID)
		if err != nil {
			return Tree{}, err
		}
		if len(children) == 0 {
			continue
		}
		view.Children = children
		onPath[view.Part.ID] = true
		stack = append(stack, &treeFrame{partID: view.Part.ID, views: children})
	}
	return tree, nil
}
