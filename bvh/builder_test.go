package bvh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestEmptyBVH(t *testing.T) {
	tree := Build(nil)
	if len(tree.Nodes) != 1 {
		t.Fatalf("expected a single degenerate root node, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].LeafCount != 0 {
		t.Errorf("empty tree root should have LeafCount 0, got %d", tree.Nodes[0].LeafCount)
	}
	data := tree.ToBytes()
	if len(data) != NodeSize {
		t.Fatalf("expected %d bytes, got %d", NodeSize, len(data))
	}
}

func TestSingleObject(t *testing.T) {
	prims := []Primitive{
		{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}, Centroid: mgl32.Vec3{0.5, 0.5, 0.5}, Index: 7},
	}
	tree := Build(prims)

	if len(tree.Nodes) != 1 {
		t.Fatalf("single primitive should produce one leaf node, got %d nodes", len(tree.Nodes))
	}
	root := tree.Nodes[0]
	if root.LeafCount != 1 || root.LeafFirst != 0 {
		t.Errorf("expected leaf referencing slot 0 with count 1, got first=%d count=%d", root.LeafFirst, root.LeafCount)
	}
	if tree.PrimIndex[0] != 7 {
		t.Errorf("expected primitive index 7 preserved, got %d", tree.PrimIndex[0])
	}

	decoded := DecodeNode(root.ToBytes())
	if decoded.LeafFirst != 0 || decoded.LeafCount != 1 {
		t.Errorf("round-tripped leaf mismatch: %+v", decoded)
	}
}

// TestTwoObjectsSplit places two objects far apart on X. Each object is a
// cluster of three primitives, so the six together exceed LeafMax and the
// root must split; SAH should put each object in its own leaf.
func TestTwoObjectsSplit(t *testing.T) {
	prims := []Primitive{
		{Min: mgl32.Vec3{-100, -1, -1}, Max: mgl32.Vec3{-98, 1, 1}, Centroid: mgl32.Vec3{-99, 0, 0}, Index: 0},
		{Min: mgl32.Vec3{-99.5, -1, -1}, Max: mgl32.Vec3{-97.5, 1, 1}, Centroid: mgl32.Vec3{-98.5, 0, 0}, Index: 1},
		{Min: mgl32.Vec3{-99, -1, -1}, Max: mgl32.Vec3{-97, 1, 1}, Centroid: mgl32.Vec3{-98, 0, 0}, Index: 2},
		{Min: mgl32.Vec3{97, -1, -1}, Max: mgl32.Vec3{99, 1, 1}, Centroid: mgl32.Vec3{98, 0, 0}, Index: 3},
		{Min: mgl32.Vec3{97.5, -1, -1}, Max: mgl32.Vec3{99.5, 1, 1}, Centroid: mgl32.Vec3{98.5, 0, 0}, Index: 4},
		{Min: mgl32.Vec3{98, -1, -1}, Max: mgl32.Vec3{100, 1, 1}, Centroid: mgl32.Vec3{99, 0, 0}, Index: 5},
	}
	tree := Build(prims)

	if len(tree.Nodes) != 3 {
		t.Fatalf("expected root + 2 leaves (3 nodes), got %d", len(tree.Nodes))
	}

	root := tree.Nodes[0]
	if root.Min.X() > -98 {
		t.Errorf("root min X should cover -100 object, got %f", root.Min.X())
	}
	if root.Max.X() < 98 {
		t.Errorf("root max X should cover +100 object, got %f", root.Max.X())
	}
	if root.Left == root.Right {
		t.Error("left and right children should differ")
	}
	if root.Left < 1 || root.Right < 1 {
		t.Error("children should never be node 0 (the root)")
	}

	left := tree.Nodes[root.Left]
	right := tree.Nodes[root.Right]
	if left.LeafCount != 3 || right.LeafCount != 3 {
		t.Errorf("both children should be three-primitive leaves, got %+v / %+v", left, right)
	}
}

// TestCompleteness checks that every primitive fed in appears exactly
// once across all leaves, regardless of how the SAH split chose to
// partition them (spec.md §8 completeness property).
func TestCompleteness(t *testing.T) {
	prims := make([]Primitive, 37)
	for i := range prims {
		c := mgl32.Vec3{float32(i), float32(i % 5), float32(-i)}
		prims[i] = Primitive{
			Min:      c.Sub(mgl32.Vec3{0.5, 0.5, 0.5}),
			Max:      c.Add(mgl32.Vec3{0.5, 0.5, 0.5}),
			Centroid: c,
			Index:    int32(i),
		}
	}

	tree := Build(prims)

	seen := make(map[int32]bool)
	var walk func(idx int32)
	walk = func(idx int32) {
		n := tree.Nodes[idx]
		if n.LeafCount > 0 {
			for i := int32(0); i < n.LeafCount; i++ {
				seen[tree.PrimIndex[n.LeafFirst+i]] = true
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(0)

	if len(seen) != len(prims) {
		t.Fatalf("expected %d distinct primitives reachable from the root, got %d", len(prims), len(seen))
	}
	for i := range prims {
		if !seen[int32(i)] {
			t.Errorf("primitive %d missing from tree", i)
		}
	}
}

// TestBounding checks that every node's AABB contains every primitive in
// its subtree (spec.md §8 bounding property), on all three axes: a leaf
// must contain each of its primitives and an interior node both of its
// children. Five primitives exceed LeafMax, so the root is interior.
func TestBounding(t *testing.T) {
	prims := []Primitive{
		{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}, Centroid: mgl32.Vec3{0.5, 0.5, 0.5}, Index: 0},
		{Min: mgl32.Vec3{5, 5, 5}, Max: mgl32.Vec3{6, 6, 6}, Centroid: mgl32.Vec3{5.5, 5.5, 5.5}, Index: 1},
		{Min: mgl32.Vec3{-3, 2, -1}, Max: mgl32.Vec3{-2, 3, 0}, Centroid: mgl32.Vec3{-2.5, 2.5, -0.5}, Index: 2},
		{Min: mgl32.Vec3{10, -5, 2}, Max: mgl32.Vec3{11, -4, 3}, Centroid: mgl32.Vec3{10.5, -4.5, 2.5}, Index: 3},
		{Min: mgl32.Vec3{20, 20, 20}, Max: mgl32.Vec3{21, 21, 21}, Centroid: mgl32.Vec3{20.5, 20.5, 20.5}, Index: 4},
	}
	tree := Build(prims)
	if tree.Nodes[0].LeafCount > 0 {
		t.Fatalf("expected an interior root for %d primitives", len(prims))
	}

	below := func(a, b mgl32.Vec3) bool {
		return a.X() < b.X()-1e-4 || a.Y() < b.Y()-1e-4 || a.Z() < b.Z()-1e-4
	}

	var walk func(idx int32) (mgl32.Vec3, mgl32.Vec3)
	walk = func(idx int32) (mgl32.Vec3, mgl32.Vec3) {
		n := tree.Nodes[idx]
		if n.LeafCount > 0 {
			for i := int32(0); i < n.LeafCount; i++ {
				p := prims[tree.PrimIndex[n.LeafFirst+i]]
				if below(p.Min, n.Min) || below(n.Max, p.Max) {
					t.Errorf("leaf %d does not contain primitive %d", idx, p.Index)
				}
			}
			return n.Min, n.Max
		}
		lMin, lMax := walk(n.Left)
		rMin, rMax := walk(n.Right)
		if below(lMin, n.Min) || below(rMin, n.Min) {
			t.Errorf("node %d min does not contain children", idx)
		}
		if below(n.Max, lMax) || below(n.Max, rMax) {
			t.Errorf("node %d max does not contain children", idx)
		}
		return n.Min, n.Max
	}
	walk(0)
}

// TestNeverExceedsStackDepth is a loose sanity bound: with LeafMax = 4
// a balanced binary split over a few hundred primitives should never
// need anywhere near MaxStackDepth levels.
func TestNeverExceedsStackDepth(t *testing.T) {
	n := 500
	prims := make([]Primitive, n)
	for i := range prims {
		c := mgl32.Vec3{float32(i % 23), float32((i * 7) % 19), float32((i * 13) % 11)}
		prims[i] = Primitive{Min: c, Max: c.Add(mgl32.Vec3{1, 1, 1}), Centroid: c.Add(mgl32.Vec3{0.5, 0.5, 0.5}), Index: int32(i)}
	}
	tree := Build(prims)

	var depth func(idx int32) int
	depth = func(idx int32) int {
		nd := tree.Nodes[idx]
		if nd.LeafCount > 0 {
			return 1
		}
		l, r := depth(nd.Left), depth(nd.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	d := depth(0)
	if d > MaxStackDepth {
		t.Errorf("tree depth %d exceeds traversal stack depth %d", d, MaxStackDepth)
	}
}

func TestHalfFloatRoundTrip(t *testing.T) {
	vals := []float32{0, 1, -1, 0.5, 0.25, 100.125}
	for _, v := range vals {
		h := halfFromFloat32Exported(v)
		got := halfToFloat32(h)
		if math.Abs(float64(got-v)) > 1e-3 {
			t.Errorf("half(%v) round-tripped to %v", v, got)
		}
	}
}

// halfFromFloat32Exported/halfToFloat32 exist only so this test file can
// exercise the half-float conversion: the real conversion,
// scenebuild.halfFromFloat32, is unexported, and this copy is identical.
func halfFromFloat32Exported(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mantissa := bits & 0x7fffff
	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exp)<<10 | uint16(mantissa>>13)
	}
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	mant := uint32(h & 0x3ff)
	if exp == 0 {
		return math.Float32frombits(sign)
	}
	bits := sign | (exp-15+127)<<23 | mant<<13
	return math.Float32frombits(bits)
}
