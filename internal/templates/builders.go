package templates

import (
	"fmt"

	"scenecore/pkg/domain"
)

// WallColor is the default color of container walls.
const WallColor = "GRAYx"

const wallPolygons = 20

func positive(name string, values ...float64) error {
	for _, v := range values {
		if v <= 0 {
			return domain.ValidationError{Entity: domain.EntityAvatar, Field: name, Message: fmt.Sprintf("must be positive, got %g", v)}
		}
	}
	return nil
}

func center2D(center []float64) error {
	if len(center) != 2 {
		return domain.ValidationError{Entity: domain.EntityAvatar, Field: "center", Message: fmt.Sprintf("must have 2 coordinates, got %d", len(center))}
	}
	return nil
}

func orDefault(color, def string) string {
	if color == "" {
		return def
	}
	return color
}

// Cluster2D returns a rigid cluster of disks inscribed in radius.
func Cluster2D(center []float64, material, model string, disks int, radius float64, color string) (domain.Avatar, error) {
	if err := center2D(center); err != nil {
		return domain.Avatar{}, err
	}
	a := domain.Avatar{
		Kind:     domain.AvatarRigidCluster,
		Center:   append([]float64(nil), center...),
		Material: material,
		Model:    model,
		Color:    orDefault(color, domain.DefaultColor),
		Origin:   domain.OriginManual,
		Shape:    domain.ClusterShape{Radius: radius, Disks: disks},
	}
	return a, domain.ValidateAvatar(a, 2)
}

// Dumbbell2D returns an empty avatar made of two disks joined by a jonc of
// the given length.
func Dumbbell2D(center []float64, material, model string, length, diskRadius float64, color string) (domain.Avatar, error) {
	if err := center2D(center); err != nil {
		return domain.Avatar{}, err
	}
	if err := positive("length", length, diskRadius); err != nil {
		return domain.Avatar{}, err
	}
	color = orDefault(color, domain.DefaultColor)
	half := length / 2
	a := domain.Avatar{
		Kind:     domain.AvatarEmpty,
		Center:   append([]float64(nil), center...),
		Material: material,
		Model:    model,
		Color:    color,
		Origin:   domain.OriginManual,
		Shape: domain.EmptyShape{Contactors: []domain.Contactor{
			{Shape: "DISKx", Color: color, Params: map[string]any{"byrd": diskRadius, "coor": []float64{-half, 0}}},
			{Shape: "DISKx", Color: color, Params: map[string]any{"byrd": diskRadius, "coor": []float64{half, 0}}},
			{Shape: "JONCx", Color: color, Params: map[string]any{"axe1": length, "axe2": diskRadius * 0.3}},
		}},
	}
	return a, domain.ValidateAvatar(a, 2)
}

func smoothWall(x, y, length, height float64, material, model, color string) domain.Avatar {
	return domain.Avatar{
		Kind:     domain.AvatarSmoothWall,
		Center:   []float64{x, y},
		Material: material,
		Model:    model,
		Color:    color,
		Origin:   domain.OriginManual,
		Shape:    domain.WallShape{Length: length, Height: height, PolygonCount: wallPolygons},
	}
}

// BoxContainer2D returns the bottom, left and right walls of an open box
// centred on center.
func BoxContainer2D(width, height, thickness float64, center []float64, material, model, color string) ([]domain.Avatar, error) {
	if err := center2D(center); err != nil {
		return nil, err
	}
	if err := positive("width", width, height, thickness); err != nil {
		return nil, err
	}
	color = orDefault(color, WallColor)
	cx, cy := center[0], center[1]
	walls := []domain.Avatar{
		smoothWall(cx, cy-height/2, width, thickness, material, model, color),
		smoothWall(cx-width/2, cy, thickness, height, material, model, color),
		smoothWall(cx+width/2, cy, thickness, height, material, model, color),
	}
	for _, w := range walls {
		if err := domain.ValidateAvatar(w, 2); err != nil {
			return nil, err
		}
	}
	return walls, nil
}

// hopperWallThickness is the horizontal thickness of each hopper side.
const hopperWallThickness = 0.1

// Hopper2D returns the two slanted sides of a V-shaped hopper. The opening at
// the bottom is bottomWidth wide.
func Hopper2D(topWidth, bottomWidth, height float64, center []float64, material, model, color string) ([]domain.Avatar, error) {
	if err := center2D(center); err != nil {
		return nil, err
	}
	if err := positive("width", topWidth, bottomWidth, height); err != nil {
		return nil, err
	}
	if bottomWidth >= topWidth {
		return nil, domain.ValidationError{Entity: domain.EntityAvatar, Field: "bottom_width", Message: "must be narrower than the top"}
	}
	color = orDefault(color, WallColor)
	top, bot, h := topWidth/2, bottomWidth/2, height/2
	offset := (top + bot) / 2
	radius := (top - bot) / 2
	side := func(x float64, vertices [][]float64) domain.Avatar {
		return domain.Avatar{
			Kind:     domain.AvatarRigidPolygon,
			Center:   []float64{x, center[1]},
			Material: material,
			Model:    model,
			Color:    color,
			Origin:   domain.OriginManual,
			Shape:    domain.PolygonShape{Generation: domain.PolygonFull, Radius: radius, Vertices: vertices},
		}
	}
	t := hopperWallThickness
	sides := []domain.Avatar{
		side(center[0]-offset, [][]float64{{-top, h}, {-bot, -h}, {-bot + t, -h}, {-top + t, h}}),
		side(center[0]+offset, [][]float64{{bot - t, -h}, {bot, -h}, {top, h}, {top - t, h}}),
	}
	for _, s := range sides {
		if err := domain.ValidateAvatar(s, 2); err != nil {
			return nil, err
		}
	}
	return sides, nil
}
