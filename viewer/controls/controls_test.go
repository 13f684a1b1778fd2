package controls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"globe/hal"
	"globe/viewer/quarkgl"
	"globe/viewer/tiles"
)

type fixedSurface struct{ w, h int }

func (s fixedSurface) Size() (int, int) { return s.w, s.h }

const deg = math.Pi / 180

func setup(h float64) (*Controls, *quarkgl.Group) {
	root := quarkgl.NewGroup()
	root.Rotation.X = -math.Pi / 2
	scene := quarkgl.NewScene()
	scene.Add(root)

	cam := quarkgl.NewCamera(60, 1, 1, 1e8)
	cam.Position = root.Matrix().MulPoint(tiles.WGS84.CartographicToCartesian(52*deg, 5*deg, h))
	cam.LookAt(quarkgl.V3(0, 0, 0), quarkgl.V3(0, 1, 0))
	cam.UpdateMatrixWorld()

	c := New(scene, cam, fixedSurface{w: 320, h: 240})
	c.EnableDamping = true
	c.SetEllipsoid(tiles.WGS84, root)
	return c, root
}

func cartographic(c *Controls, root *quarkgl.Group) (lat, lon, h float64) {
	local := quarkgl.Mat4InverseRigid(root.Matrix()).MulPoint(c.Camera().Position)
	lat, lon, h = tiles.WGS84.CartesianToCartographic(local)
	return lat / deg, lon / deg, h
}

func hold(c *Controls, code hal.KeyCode, frames int) {
	c.HandleKey(hal.KeyEvent{Code: code, Press: true})
	for i := 0; i < frames; i++ {
		c.Update()
	}
	c.HandleKey(hal.KeyEvent{Code: code, Press: false})
}

func TestUpdateWithoutInputKeepsPose(t *testing.T) {
	c, _ := setup(10000)
	pos, rot := c.Camera().Position, c.Camera().Rotation

	for i := 0; i < 10; i++ {
		c.Update()
	}
	require.Equal(t, pos, c.Camera().Position)
	require.Equal(t, rot, c.Camera().Rotation)
	require.InDelta(t, 320.0/240.0, c.Camera().Aspect, 1e-9)
}

func TestUpdateBeforeSetEllipsoid(t *testing.T) {
	cam := quarkgl.NewCamera(60, 1, 1, 1e8)
	cam.Position = quarkgl.V3(1, 2, 3)
	c := New(quarkgl.NewScene(), cam, nil)

	require.True(t, c.HandleKey(hal.KeyEvent{Code: hal.KeyUp, Press: true}))
	c.Update()
	require.Equal(t, quarkgl.V3(1, 2, 3), cam.Position)
}

func TestPanNorthAndEast(t *testing.T) {
	c, root := setup(10000)
	lat0, lon0, h0 := cartographic(c, root)

	hold(c, hal.KeyUp, 5)
	lat1, lon1, _ := cartographic(c, root)
	require.Greater(t, lat1, lat0)
	require.InDelta(t, lon0, lon1, 1e-6)

	hold(c, hal.KeyRight, 5)
	_, lon2, h2 := cartographic(c, root)
	require.Greater(t, lon2, lon1)
	require.InDelta(t, h0, h2, 50)
}

func TestPanKeepsCameraLookingDown(t *testing.T) {
	c, root := setup(10000)
	hold(c, hal.KeyLeft, 20)

	c.Camera().UpdateMatrixWorld()
	centre := root.Matrix().Translation()
	down := quarkgl.Normalize(centre.Sub(c.Camera().Position))
	require.InDelta(t, 1, quarkgl.Dot(down, c.Camera().Forward()), 1e-6)
}

func TestZoomStopsAtMinDistance(t *testing.T) {
	c, root := setup(10000)
	hold(c, hal.KeyPageUp, 500)

	_, _, h := cartographic(c, root)
	require.InDelta(t, MinDistance, h, 1)
	require.GreaterOrEqual(t, c.Camera().Near, 0.5)
}

func TestZoomOutRune(t *testing.T) {
	c, root := setup(10000)
	require.True(t, c.HandleKey(hal.KeyEvent{Press: true, Rune: '-'}))
	c.Update()

	_, _, h := cartographic(c, root)
	require.Greater(t, h, 10000.0)
}

func TestDampingCarriesInertia(t *testing.T) {
	c, root := setup(10000)
	hold(c, hal.KeyUp, 3)
	lat0, _, _ := cartographic(c, root)

	c.Update()
	lat1, _, _ := cartographic(c, root)
	require.Greater(t, lat1, lat0)

	for i := 0; i < 200; i++ {
		c.Update()
	}
	pos := c.Camera().Position
	c.Update()
	require.Equal(t, pos, c.Camera().Position)
}

func TestWithoutDampingStopsOnRelease(t *testing.T) {
	c, _ := setup(10000)
	c.EnableDamping = false
	hold(c, hal.KeyUp, 3)

	pos := c.Camera().Position
	c.Update()
	require.Equal(t, pos, c.Camera().Position)
}

func TestHeadingTurnsInPlace(t *testing.T) {
	c, root := setup(10000)
	// tilt away from nadir so a heading change is visible in the view direction
	c.Camera().Rotation = quarkgl.EulerFromMatrix(
		quarkgl.Mat4Mul(c.Camera().Rotation.Matrix(), quarkgl.Mat4RotateX(0.3)))
	c.Camera().UpdateMatrixWorld()
	before := c.Camera().Forward()
	pos := c.Camera().Position

	require.True(t, c.HandleKey(hal.KeyEvent{Press: true, Rune: 'a'}))
	c.Update()
	c.Camera().UpdateMatrixWorld()

	require.Equal(t, pos, c.Camera().Position)
	require.Less(t, quarkgl.Dot(before, c.Camera().Forward()), 1-1e-6)
	_, _, h := cartographic(c, root)
	require.InDelta(t, 10000, h, 1)
}

func TestDisposeIgnoresInput(t *testing.T) {
	c, _ := setup(10000)
	pos := c.Camera().Position
	c.Dispose()
	c.Dispose()

	require.False(t, c.HandleKey(hal.KeyEvent{Code: hal.KeyUp, Press: true}))
	c.Update()
	require.Equal(t, pos, c.Camera().Position)
	require.False(t, c.HandleKey(hal.KeyEvent{Press: true, Rune: 'x'}))
}
