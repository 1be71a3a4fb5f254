package templates

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"scenecore/pkg/domain"
)

func TestDefaultCatalogueContents(t *testing.T) {
	cat := Default()
	want2D := []string{"disk_large", "disk_medium", "disk_small", "hexagon", "jonc_horizontal",
		"jonc_vertical", "pentagon", "rectangle", "square", "triangle", "wall_horizontal"}
	var got []string
	for _, tpl := range cat.List(2) {
		got = append(got, tpl.Name)
	}
	if len(got) != len(want2D) {
		t.Fatalf("expected %d 2D templates, got %v", len(want2D), got)
	}
	cats := cat.Categories(3)
	if !reflect.DeepEqual(cats["particles"], []string{"sphere_large", "sphere_medium", "sphere_small"}) {
		t.Fatalf("unexpected 3D particles %v", cats["particles"])
	}
	if !reflect.DeepEqual(cats["solids"], []string{"cylinder", "plan_floor"}) {
		t.Fatalf("unexpected 3D solids %v", cats["solids"])
	}
}

func TestInstantiateDefaults(t *testing.T) {
	a, err := Instantiate("disk_small", 2, []float64{1, 2}, "TDURx", "rigid", "", nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if a.Kind != domain.AvatarRigidDisk || a.Color != domain.DefaultColor || a.Origin != domain.OriginManual {
		t.Fatalf("unexpected avatar %+v", a)
	}
	if s := a.Shape.(domain.DiskShape); s.Radius != 0.05 {
		t.Fatalf("expected radius 0.05, got %v", s.Radius)
	}

	rect, err := Instantiate("rectangle", 2, []float64{0, 0}, "TDURx", "rigid", "REDxx", nil)
	if err != nil {
		t.Fatalf("instantiate rectangle: %v", err)
	}
	poly := rect.Shape.(domain.PolygonShape)
	if poly.Generation != domain.PolygonFull || len(poly.Vertices) != 4 || poly.Vertices[1][0] != 0.15 {
		t.Fatalf("unexpected rectangle %+v", poly)
	}

	wall, err := Instantiate("wall_horizontal", 2, []float64{0, 0}, "TDURx", "rigid", "", nil)
	if err != nil {
		t.Fatalf("instantiate wall: %v", err)
	}
	if ws := wall.Shape.(domain.WallShape); ws.Length != 2 || ws.Height != 0.1 || ws.PolygonCount != 20 {
		t.Fatalf("unexpected wall %+v", ws)
	}

	plan, err := Instantiate("plan_floor", 3, []float64{0, 0, 0}, "TDURx", "rigid", "", nil)
	if err != nil {
		t.Fatalf("instantiate plan: %v", err)
	}
	if _, ok := plan.Shape.(domain.PlanShape); !ok {
		t.Fatalf("unexpected plan shape %T", plan.Shape)
	}
}

func TestInstantiateOverrides(t *testing.T) {
	a, err := Instantiate("hexagon", 2, []float64{0, 0}, "TDURx", "rigid", "", map[string]float64{"r": 0.4})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if s := a.Shape.(domain.PolygonShape); s.Radius != 0.4 || s.VertexCount != 6 {
		t.Fatalf("unexpected hexagon %+v", s)
	}

	cases := map[string]map[string]float64{
		"out of range":  {"r": 20},
		"not in schema": {"nb_vertices": 8},
	}
	for name, overrides := range cases {
		_, err := Instantiate("hexagon", 2, []float64{0, 0}, "TDURx", "rigid", "", overrides)
		var verr domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestInstantiateRejectsUnknownOrWrongDimension(t *testing.T) {
	if _, err := Instantiate("sphere_small", 2, []float64{0, 0}, "M", "m", "", nil); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected unknown template for 3D name in 2D, got %v", err)
	}
	if _, err := Instantiate("disk_small", 2, []float64{0, 0, 0}, "M", "m", "", nil); err == nil {
		t.Fatalf("expected center dimension error")
	}
	if _, err := Instantiate("disk_small", 2, []float64{0, 0}, "", "m", "", nil); err == nil {
		t.Fatalf("expected missing material error")
	}
}

func TestParseRejectsBadCatalogue(t *testing.T) {
	cases := map[string]string{
		"dimension": "templates:\n  - {name: x, dimension: 4, kind: rigidDisk, params: {r: 1}}\n",
		"duplicate": "templates:\n  - {name: x, dimension: 2, kind: rigidDisk, params: {r: 1}}\n  - {name: x, dimension: 2, kind: rigidDisk, params: {r: 1}}\n",
		"invalid":   "templates:\n  - {name: x, dimension: 2, kind: rigidDisk, params: {r: -1}}\n",
		"yaml":      "templates: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestBoxContainer2D(t *testing.T) {
	walls, err := BoxContainer2D(2, 1, 0.1, []float64{0, 0.5}, "TDURx", "rigid", "")
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	if len(walls) != 3 {
		t.Fatalf("expected 3 walls, got %d", len(walls))
	}
	wantCenters := [][]float64{{0, 0}, {-1, 0.5}, {1, 0.5}}
	for i, w := range walls {
		if !reflect.DeepEqual(w.Center, wantCenters[i]) || w.Color != WallColor || w.Kind != domain.AvatarSmoothWall {
			t.Fatalf("wall %d: unexpected %+v", i, w)
		}
	}
	if ws := walls[1].Shape.(domain.WallShape); ws.Length != 0.1 || ws.Height != 1 {
		t.Fatalf("side wall should be thickness wide and box high: %+v", ws)
	}
	if _, err := BoxContainer2D(0, 1, 0.1, []float64{0, 0}, "M", "m", ""); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestHopper2DIsSymmetric(t *testing.T) {
	sides, err := Hopper2D(2, 0.4, 1, []float64{0, 0}, "TDURx", "rigid", "")
	if err != nil {
		t.Fatalf("hopper: %v", err)
	}
	left, right := sides[0], sides[1]
	if math.Abs(left.Center[0]+right.Center[0]) > 1e-12 || left.Center[0] >= 0 {
		t.Fatalf("sides not mirrored: %v %v", left.Center, right.Center)
	}
	lp, rp := left.Shape.(domain.PolygonShape), right.Shape.(domain.PolygonShape)
	if math.Abs(lp.Radius-0.4) > 1e-12 || len(rp.Vertices) != 4 {
		t.Fatalf("unexpected sides %+v %+v", lp, rp)
	}
	if _, err := Hopper2D(1, 2, 1, []float64{0, 0}, "M", "m", ""); err == nil {
		t.Fatalf("expected error when the bottom is wider than the top")
	}
}

func TestClusterAndDumbbell(t *testing.T) {
	c, err := Cluster2D([]float64{0, 0}, "TDURx", "rigid", 5, 0.1, "")
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if s := c.Shape.(domain.ClusterShape); s.Disks != 5 || s.Radius != 0.1 {
		t.Fatalf("unexpected cluster %+v", s)
	}
	if _, err := Cluster2D([]float64{0, 0}, "TDURx", "rigid", 0, 0.1, ""); err == nil {
		t.Fatalf("expected error for empty cluster")
	}

	d, err := Dumbbell2D([]float64{1, 1}, "TDURx", "rigid", 0.3, 0.05, "REDxx")
	if err != nil {
		t.Fatalf("dumbbell: %v", err)
	}
	contactors := d.Shape.(domain.EmptyShape).Contactors
	if len(contactors) != 3 || contactors[2].Shape != "JONCx" || contactors[0].Color != "REDxx" {
		t.Fatalf("unexpected contactors %+v", contactors)
	}
	if coor := contactors[1].Params["coor"].([]float64); coor[0] != 0.15 {
		t.Fatalf("second disk should sit at +length/2, got %v", coor)
	}
}
