package quarkgl

// Material is a minimal surface description.
type Material struct {
	BaseColor Color
}

// LightMode defines minimal lighting options.
type LightMode uint8

const (
	LightOff LightMode = iota
	LightAmbientDirectional
)

// Light is a minimal light setup.
type Light struct {
	Mode      LightMode
	Ambient   float64 // 0..1
	Dir       Vec3    // direction *towards* the scene
	DirAmount float64 // 0..1
}

// Vertex is a mesh vertex.
type Vertex struct {
	Pos    Vec3
	Normal Vec3
	Color  Color
}

// Mesh is an indexed triangle list in its group's local space.
type Mesh struct {
	Enabled bool

	Vertices []Vertex
	Indices  []uint32

	Material Material
}

// Group is a transformable set of meshes.
type Group struct {
	Position Vec3
	Rotation Euler
	Visible  bool

	meshes []*Mesh
}

// NewGroup returns an empty visible group.
func NewGroup() *Group { return &Group{Visible: true} }

// Matrix returns the group's local-to-world matrix.
func (g *Group) Matrix() Mat4 { return Mat4Compose(g.Position, g.Rotation) }

// Add appends a mesh and enables it.
func (g *Group) Add(m *Mesh) {
	if g == nil || m == nil {
		return
	}
	if m.Material.BaseColor == (Color{}) {
		m.Material.BaseColor = RGB(0xCC, 0xCC, 0xCC)
	}
	m.Enabled = true
	g.meshes = append(g.meshes, m)
}

// Remove detaches a mesh.
func (g *Group) Remove(m *Mesh) {
	if g == nil {
		return
	}
	for i, cur := range g.meshes {
		if cur == m {
			g.meshes = append(g.meshes[:i], g.meshes[i+1:]...)
			return
		}
	}
}

// Clear detaches every mesh.
func (g *Group) Clear() {
	if g != nil {
		g.meshes = nil
	}
}

// Len returns the number of attached meshes.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	return len(g.meshes)
}

// Scene is a collection of groups to render.
type Scene struct {
	Light  Light
	groups []*Group
}

// NewScene returns an empty scene with the default light.
func NewScene() *Scene {
	return &Scene{
		Light: Light{
			Mode:      LightAmbientDirectional,
			Ambient:   0.55,
			Dir:       Normalize(V3(-1, -1, -1)),
			DirAmount: 0.45,
		},
	}
}

// Add attaches a group; adding the same group twice is a no-op.
func (s *Scene) Add(g *Group) {
	if s == nil || g == nil || s.Contains(g) {
		return
	}
	s.groups = append(s.groups, g)
}

// Remove detaches a group.
func (s *Scene) Remove(g *Group) {
	if s == nil {
		return
	}
	for i, cur := range s.groups {
		if cur == g {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return
		}
	}
}

// Contains reports whether g is attached.
func (s *Scene) Contains(g *Group) bool {
	if s == nil {
		return false
	}
	for _, cur := range s.groups {
		if cur == g {
			return true
		}
	}
	return false
}

// Groups returns the number of attached groups.
func (s *Scene) Groups() int {
	if s == nil {
		return 0
	}
	return len(s.groups)
}

func (s *Scene) eachMesh(fn func(world Mat4, m *Mesh)) {
	for _, g := range s.groups {
		if !g.Visible {
			continue
		}
		world := g.Matrix()
		for _, m := range g.meshes {
			if m.Enabled {
				fn(world, m)
			}
		}
	}
}
