// Package shaders embeds the WGSL sources for the relax kernel and the
// point-sprite rasterizer. Embedding makes a missing kernel a build error;
// malformed WGSL still fails module creation at initialization time.
package shaders

import (
	_ "embed"
)

//go:embed relax.wgsl
var RelaxWGSL string

//go:embed points.wgsl
var PointsWGSL string

//go:embed text.wgsl
var TextWGSL string
