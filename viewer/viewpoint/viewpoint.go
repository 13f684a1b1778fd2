// Package viewpoint captures and restores the camera pose across pipeline
// rebuilds, and optionally persists it between runs.
package viewpoint

import (
	"math"

	"globe/internal/config"
	"globe/viewer/quarkgl"

	"github.com/juju/errors"
)

// State is a camera pose held by value.
type State struct {
	Position quarkgl.Vec3
	Rotation quarkgl.Euler
}

// Initial looks down on the Netherlands.
var Initial = State{
	Position: quarkgl.V3(3971364.928846245, 4968792.282701428, -250499.79677567462),
	Rotation: quarkgl.Euler{X: -1.6208314773574481, Y: 0.6704074335198622, Z: 1.6443201998953914},
}

// Capture copies the camera's position and rotation.
func Capture(cam *quarkgl.Camera) State {
	if cam == nil {
		return State{}
	}
	return State{Position: cam.Position, Rotation: cam.Rotation}
}

// Apply writes the pose to cam and refreshes its world matrix.
func (s State) Apply(cam *quarkgl.Camera) {
	if cam == nil {
		return
	}
	cam.Position = s.Position
	cam.Rotation = s.Rotation
	cam.UpdateMatrixWorld()
}

// Valid reports whether every component is finite.
func (s State) Valid() bool {
	for _, v := range []float64{
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Rotation.X, s.Rotation.Y, s.Rotation.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type file struct {
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
}

// Load reads a pose saved by Save.
func Load(path string) (State, error) {
	var f file
	if err := config.ReadJSON(path, &f); err != nil {
		return State{}, errors.Trace(err)
	}
	s := State{
		Position: quarkgl.V3(f.Position[0], f.Position[1], f.Position[2]),
		Rotation: quarkgl.Euler{X: f.Rotation[0], Y: f.Rotation[1], Z: f.Rotation[2]},
	}
	if s.Position == (quarkgl.Vec3{}) {
		return State{}, errors.NotValidf("viewpoint %q at the origin", path)
	}
	return s, nil
}

// Save writes s to path as JSON.
func Save(path string, s State) error {
	if !s.Valid() {
		return errors.NotValidf("non-finite viewpoint")
	}
	return config.WriteJSON(path, file{
		Position: [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
		Rotation: [3]float64{s.Rotation.X, s.Rotation.Y, s.Rotation.Z},
	})
}
