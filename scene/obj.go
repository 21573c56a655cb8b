package scene

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// LoadOBJ reads a Wavefront OBJ file and lowers every face into a
// Triangle Shape, triangulating n-gons as a fan around the first
// vertex (matching the convention most OBJ exporters already assume).
// materialOverride, when >= 0, is written into every resulting Shape's
// Material field instead of the scene's default material index.
func LoadOBJ(path string, materialOverride int32, xform mgl32.Mat4) ([]Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("obj: %w", err)
	}
	defer f.Close()

	var positions []mgl32.Vec3
	var uvs []mgl32.Vec2
	var shapes []Shape

	material := materialOverride
	if material < 0 {
		material = 0 // the scene's default material, see NewScene
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: malformed vertex line %q", line)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, err
			}
			p4 := xform.Mul4x1(v.Vec4(1))
			positions = append(positions, p4.Vec3())
		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("obj: malformed texcoord line %q", line)
			}
			u, err1 := strconv.ParseFloat(fields[1], 32)
			v, err2 := strconv.ParseFloat(fields[2], 32)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("obj: bad texcoord %q", line)
			}
			uvs = append(uvs, mgl32.Vec2{float32(u), float32(v)})
		case "f":
			idxs := fields[1:]
			if len(idxs) < 3 {
				continue
			}
			first, err := parseFaceVertex(idxs[0], len(positions), len(uvs))
			if err != nil {
				return nil, err
			}
			for i := 1; i < len(idxs)-1; i++ {
				b, err := parseFaceVertex(idxs[i], len(positions), len(uvs))
				if err != nil {
					return nil, err
				}
				c, err := parseFaceVertex(idxs[i+1], len(positions), len(uvs))
				if err != nil {
					return nil, err
				}
				tri := Shape{
					Kind:     ShapeTriangle,
					Material: material,
					Partner:  -1,
					V0:       positions[first.posIdx],
					V1:       positions[b.posIdx],
					V2:       positions[c.posIdx],
				}
				if first.uvIdx >= 0 {
					tri.UV0 = uvs[first.uvIdx]
				}
				if b.uvIdx >= 0 {
					tri.UV1 = uvs[b.uvIdx]
				}
				if c.uvIdx >= 0 {
					tri.UV2 = uvs[c.uvIdx]
				}
				shapes = append(shapes, tri)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("obj: scan %s: %w", path, err)
	}
	return shapes, nil
}

type faceVertex struct {
	posIdx int
	uvIdx  int
}

// parseFaceVertex parses one `v`, `v/vt`, `v/vt/vn` or `v//vn` token,
// resolving OBJ's 1-based (and, for trailing vertices, negative)
// indices against the counts seen so far.
func parseFaceVertex(tok string, posCount, uvCount int) (faceVertex, error) {
	parts := strings.Split(tok, "/")
	pos, err := resolveIndex(parts[0], posCount)
	if err != nil {
		return faceVertex{}, fmt.Errorf("obj: face vertex %q: %w", tok, err)
	}
	uv := -1
	if len(parts) > 1 && parts[1] != "" {
		uv, err = resolveIndex(parts[1], uvCount)
		if err != nil {
			return faceVertex{}, fmt.Errorf("obj: face uv %q: %w", tok, err)
		}
	}
	return faceVertex{posIdx: pos, uvIdx: uv}, nil
}

func resolveIndex(s string, count int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return n - 1, nil
	}
	if n < 0 {
		return count + n, nil
	}
	return 0, fmt.Errorf("index 0 is invalid in OBJ")
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("obj: bad float %q", fields[i])
		}
		v[i] = float32(f)
	}
	return v, nil
}
