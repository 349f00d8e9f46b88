package nv

// Save snapshots n for a later Restore and returns the snapshot node.
//
// Attributes, value and the discipline chain are copied layer for layer, so
// ownership survives the round trip. An array is moved into the snapshot;
// unless detach is set, n keeps a copy-on-write view of it with the cursor
// where it was. With detach, n is left without a value.
func Save(n *Node, detach bool) *Node {
	saved := &Node{
		name:  n.name,
		attr:  n.attr,
		val:   n.val,
		disc:  copyLayers(n.disc),
		tree:  n.tree,
		level: n.level,
		Meta:  n.Meta,
	}
	if av, ok := n.val.(ArrayValue); ok {
		av.Array.base().holder = saved
		n.val = nil
		if !detach {
			n.val = ArrayValue{Array: av.Array.clone(n, CloneView)}
		}
		return saved
	}
	if detach {
		n.val = nil
	}
	return saved
}

// Restore puts a snapshot taken by Save back onto live, discarding whatever
// live holds now. Elements of a restored array are re-parented to live.
// Restore bypasses disciplines and the journal; call Tree.Touch afterwards.
func Restore(live, saved *Node) {
	live.attr, live.val, live.disc, live.Meta = saved.attr, saved.val, saved.disc, saved.Meta
	if av, ok := live.val.(ArrayValue); ok {
		av.Array.base().holder = live
	}
	saved.attr, saved.val, saved.disc = 0, nil, nil
}

func copyLayers(l *Layer) *Layer {
	if l == nil {
		return nil
	}
	return &Layer{disc: l.disc, own: l.own, next: copyLayers(l.next)}
}
