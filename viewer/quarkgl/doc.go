// Package quarkgl is a small software 3D renderer used to draw the globe.
//
// Pipeline (fixed):
//
//	Scene → Transform → Projection → Clipping → Rasterization → Frame output.
//
// Objects follow the usual scene-graph conventions: a Camera and every Group carry a
// Position and an Euler Rotation (XYZ order), and UpdateMatrixWorld folds them into
// a world matrix. All math is float64 so that planet-sized coordinates stay exact
// enough for a camera a few hundred metres above the surface.
//
// The renderer draws into a caller-provided Target and does not allocate in the
// render hot path once its depth buffer has been sized.
package quarkgl
