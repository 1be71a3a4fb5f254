package chipmunk

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"

	"scenecore/pkg/domain"
)

// part is one contactor of a body in body-local coordinates.
type part struct {
	build func(body *cp.Body) *cp.Shape
	area  float64
	// inertia is the second moment of area about the body origin.
	inertia float64
	color   string
}

func circlePart(r float64, offset cp.Vector, color string) part {
	area := math.Pi * r * r
	return part{
		build: func(body *cp.Body) *cp.Shape {
			return cp.NewCircle(body, r, offset)
		},
		area:    area,
		inertia: area * (r*r/2 + offset.X*offset.X + offset.Y*offset.Y),
		color:   color,
	}
}

func boxPart(w, h float64, color string) part {
	area := w * h
	return part{
		build: func(body *cp.Body) *cp.Shape {
			return cp.NewBox(body, w, h, 0)
		},
		area:    area,
		inertia: area * (w*w + h*h) / 12,
		color:   color,
	}
}

func segmentPart(halfLength, radius float64, color string) part {
	a, b := cp.Vector{X: -halfLength}, cp.Vector{X: halfLength}
	w, h := 2*(halfLength+radius), 2*radius
	area := w * h
	return part{
		build: func(body *cp.Body) *cp.Shape {
			return cp.NewSegment(body, a, b, radius)
		},
		area:    area,
		inertia: area * (w*w + h*h) / 12,
		color:   color,
	}
}

func polygonPart(verts []cp.Vector, color string) (part, error) {
	if len(verts) < 3 {
		return part{}, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(verts))
	}
	var cross, num float64
	for i := range verts {
		a, b := verts[i], verts[(i+1)%len(verts)]
		c := a.X*b.Y - a.Y*b.X
		cross += c
		num += c * (a.X*a.X + a.Y*a.Y + a.X*b.X + a.Y*b.Y + b.X*b.X + b.Y*b.Y)
	}
	area := math.Abs(cross) / 2
	if area == 0 {
		return part{}, fmt.Errorf("degenerate polygon")
	}
	if cross < 0 {
		reversed := make([]cp.Vector, len(verts))
		for i, v := range verts {
			reversed[len(verts)-1-i] = v
		}
		verts = reversed
	}
	return part{
		build: func(body *cp.Body) *cp.Shape {
			return cp.NewPolyShapeRaw(body, len(verts), verts, 0)
		},
		area:    area,
		inertia: math.Abs(num) / 12,
		color:   color,
	}, nil
}

func regularVertices(n int, rx, ry float64) []cp.Vector {
	verts := make([]cp.Vector, n)
	for i := range verts {
		angle := 2 * math.Pi * float64(i) / float64(n)
		verts[i] = cp.Vector{X: rx * math.Cos(angle), Y: ry * math.Sin(angle)}
	}
	return verts
}

func planar(points [][]float64) []cp.Vector {
	out := make([]cp.Vector, 0, len(points))
	for _, p := range points {
		if len(p) < 2 {
			continue
		}
		out = append(out, cp.Vector{X: p[0], Y: p[1]})
	}
	return out
}

// partsFor describes the contactors of an avatar. 3-D kinds are projected on
// the x-y plane.
func partsFor(a domain.Avatar) ([]part, error) {
	color := a.Color
	switch s := a.Shape.(type) {
	case domain.DiskShape:
		return []part{circlePart(s.Radius, cp.Vector{}, color)}, nil
	case domain.ClusterShape:
		return clusterParts(s, color), nil
	case domain.JoncShape:
		return []part{segmentPart(s.Axe1, s.Axe2, color)}, nil
	case domain.PolygonShape:
		verts := planar(s.Vertices)
		if s.Generation == domain.PolygonRegular {
			verts = regularVertices(s.VertexCount, s.Radius, s.Radius)
		}
		p, err := polygonPart(verts, color)
		if err != nil {
			return nil, err
		}
		return []part{p}, nil
	case domain.OvoidShape:
		p, err := polygonPart(regularVertices(s.VertexCount, s.Ra, s.Rb), color)
		if err != nil {
			return nil, err
		}
		return []part{p}, nil
	case domain.WallShape:
		return wallParts(a.Kind, s, color), nil
	case domain.EmptyShape:
		return contactorParts(s.Contactors)
	case domain.CylinderShape:
		return []part{boxPart(2*s.Radius, s.Height, color)}, nil
	case domain.PlanShape:
		return []part{segmentPart(0.5, 0.01, color)}, nil
	}
	return nil, fmt.Errorf("unsupported shape %T", a.Shape)
}

func clusterParts(s domain.ClusterShape, color string) []part {
	if s.Disks <= 1 {
		return []part{circlePart(s.Radius, cp.Vector{}, color)}
	}
	// disks of equal radius inscribed in the cluster radius, touching their neighbours
	sin := math.Sin(math.Pi / float64(s.Disks))
	rd := s.Radius * sin / (1 + sin)
	parts := make([]part, 0, s.Disks)
	for i := 0; i < s.Disks; i++ {
		angle := 2 * math.Pi * float64(i) / float64(s.Disks)
		offset := cp.Vector{X: (s.Radius - rd) * math.Cos(angle), Y: (s.Radius - rd) * math.Sin(angle)}
		parts = append(parts, circlePart(rd, offset, color))
	}
	return parts
}

func wallParts(kind domain.AvatarKind, s domain.WallShape, color string) []part {
	switch kind {
	case domain.AvatarSmoothWall:
		return []part{boxPart(s.Length, s.Height, color)}
	case domain.AvatarGranuloWall, domain.AvatarGranuloRoughWall3:
		return diskRow(s.Length, []float64{s.RMin, s.RMax}, color)
	case domain.AvatarFineWall:
		return diskRow(s.Length, []float64{s.Radius / 2}, color)
	default:
		return diskRow(s.Length, []float64{s.Radius}, color)
	}
}

// diskRow lines disks along the x axis, cycling through radii, centered on the origin.
func diskRow(length float64, radii []float64, color string) []part {
	var xs []float64
	var rs []float64
	x := 0.0
	for i := 0; x <= length || i == 0; i++ {
		r := radii[i%len(radii)]
		xs = append(xs, x)
		rs = append(rs, r)
		x += 2 * r
	}
	shift := xs[len(xs)-1] / 2
	parts := make([]part, len(xs))
	for i := range xs {
		parts[i] = circlePart(rs[i], cp.Vector{X: xs[i] - shift}, color)
	}
	return parts
}

func contactorParts(contactors []domain.Contactor) ([]part, error) {
	parts := make([]part, 0, len(contactors))
	for i, c := range contactors {
		p, err := contactorPart(c)
		if err != nil {
			return nil, fmt.Errorf("contactor %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func contactorPart(c domain.Contactor) (part, error) {
	shift := vectorParam(c.Params, "shift")
	switch c.Shape {
	case "DISKx", "xKSID", "SPHER":
		r := numberParam(c.Params, "byrd", "r")
		if r <= 0 {
			return part{}, fmt.Errorf("%s needs a positive byrd", c.Shape)
		}
		return circlePart(r, shift, c.Color), nil
	case "JONCx":
		a1, a2 := numberParam(c.Params, "axe1"), numberParam(c.Params, "axe2")
		if a1 <= 0 || a2 <= 0 {
			return part{}, fmt.Errorf("JONCx needs positive axe1 and axe2")
		}
		return segmentPart(a1, a2, c.Color), nil
	case "POLYG", "POLYR":
		var verts []cp.Vector
		switch raw := c.Params["vertices"].(type) {
		case [][]float64:
			verts = planar(raw)
		case []any:
			for _, item := range raw {
				verts = append(verts, vectorOf(item))
			}
		}
		for i := range verts {
			verts[i] = verts[i].Add(shift)
		}
		if n := int(numberParam(c.Params, "nb_vertices")); len(verts) == 0 && n >= 3 {
			verts = regularVertices(n, numberParam(c.Params, "r"), numberParam(c.Params, "r"))
		}
		return polygonPart(verts, c.Color)
	case "PT2Dx":
		return circlePart(1e-6, shift, c.Color), nil
	}
	return part{}, fmt.Errorf("unknown contactor shape %q", c.Shape)
}

func numberParam(params map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := params[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

func vectorParam(params map[string]any, key string) cp.Vector {
	return vectorOf(params[key])
}

func vectorOf(raw any) cp.Vector {
	switch v := raw.(type) {
	case []float64:
		if len(v) >= 2 {
			return cp.Vector{X: v[0], Y: v[1]}
		}
	case []any:
		if len(v) >= 2 {
			x, _ := v[0].(float64)
			y, _ := v[1].(float64)
			return cp.Vector{X: x, Y: y}
		}
	}
	return cp.Vector{}
}

// buildBody creates a body at the avatar center with mass from the material
// density and the summed contactor areas.
func buildBody(a domain.Avatar, density float64) (*cp.Body, []*cp.Shape, []string, error) {
	parts, err := partsFor(a)
	if err != nil {
		return nil, nil, nil, err
	}
	var area, inertia float64
	for _, p := range parts {
		area += p.area
		inertia += p.inertia
	}
	mass, moment := density*area, density*inertia
	if mass <= 0 || moment <= 0 {
		mass, moment = 1, cp.MomentForCircle(1, 0, domain.BoundingRadius(a.Shape)+1e-6, cp.Vector{})
	}
	body := cp.NewBody(mass, moment)
	body.SetPosition(cp.Vector{X: a.Center[0], Y: a.Center[1]})
	shapes := make([]*cp.Shape, 0, len(parts))
	colors := make([]string, 0, len(parts))
	for _, p := range parts {
		shape := p.build(body)
		shape.SetFriction(0)
		shape.SetElasticity(0)
		shapes = append(shapes, shape)
		colors = append(colors, p.color)
	}
	return body, shapes, colors, nil
}
