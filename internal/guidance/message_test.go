package guidance

import (
	"testing"

	"github.com/banshee-data/wayfinder/internal/perception"
)

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0.3, "30 centimeters"},
		{0.999, "100 centimeters"},
		{1.0, "1 meter"},
		{1.46, "1.5 meters"},
		{2.0, "2.0 meters"},
	}
	for _, tt := range tests {
		if got := FormatDistance(tt.meters); got != tt.want {
			t.Errorf("FormatDistance(%v) = %q, want %q", tt.meters, got, tt.want)
		}
	}
}

func TestRelation(t *testing.T) {
	tests := []struct {
		bearing float64
		want    string
	}{
		{0, "ahead"},
		{-14, "ahead"},
		{14, "ahead"},
		{-30, "to your left"},
		{40, "to your right"},
	}
	for _, tt := range tests {
		if got := Relation(obstacleAt(tt.bearing, 1)); got != tt.want {
			t.Errorf("Relation(bearing %v) = %q, want %q", tt.bearing, got, tt.want)
		}
	}
}

func TestDistanceCategory(t *testing.T) {
	tests := []struct {
		d    float64
		want string
	}{
		{0, "unknown"},
		{0.3, "very close"},
		{0.7, "close"},
		{1.5, "nearby"},
		{2.5, "moderate"},
		{4.0, "far"},
	}
	for _, tt := range tests {
		if got := DistanceCategory(tt.d); got != tt.want {
			t.Errorf("DistanceCategory(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderMessage(t *testing.T) {
	o := obstacleAt(40, 1.2)
	o.Type = perception.TypeFurniture
	if got, want := RenderMessage(SeverityWarning, o), "Caution, furniture to your right at 1.2 meters"; got != want {
		t.Errorf("RenderMessage() = %q, want %q", got, want)
	}
	o = obstacleAt(0, 0.45)
	o.Type = perception.TypeWall
	if got, want := RenderMessage(SeverityCritical, o), "Stop! wall ahead at 45 centimeters"; got != want {
		t.Errorf("RenderMessage() = %q, want %q", got, want)
	}
}

func TestDescribeDirection(t *testing.T) {
	if got := DescribeDirection(""); got != "no recommendation" {
		t.Errorf("DescribeDirection(empty) = %q", got)
	}
	if got := DescribeDirection(DirectionLeft); got != "bear left" {
		t.Errorf("DescribeDirection(left) = %q", got)
	}
}
