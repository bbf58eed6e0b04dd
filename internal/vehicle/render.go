package vehicle

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var svgTemplate = template.Must(
	template.New("vehicle").Funcs(template.FuncMap{
		"num": num,
		// Artwork comes from the configured artwork directories or the
		// binary itself, never from request data.
		"artwork": func(s string) template.HTML { return template.HTML(s) },
	}).ParseFS(templateFS, "templates/*.tmpl"),
)

// Canvas size of the rendered SVG, in logical units.
const (
	CanvasWidth  = 1000.0
	CanvasHeight = 400.0
)

type renderWheel struct {
	WheelMark
	Selected bool
	Inner    float64
}

type renderData struct {
	Width, Height float64
	Plan          *RenderPlan
	Transform     string
	Wheels        []renderWheel
}

// RenderSVG writes plan as an SVG document. The vehicle group carries the
// viewport transform; the wheel matching selected gets the selected class.
func RenderSVG(w io.Writer, plan *RenderPlan, vp Viewport, selected string) error {
	if plan == nil {
		return fmt.Errorf("no render plan")
	}

	data := renderData{
		Width:     CanvasWidth,
		Height:    CanvasHeight,
		Plan:      plan,
		Transform: vp.String(),
		Wheels:    make([]renderWheel, 0, len(plan.Wheels)),
	}
	for _, wm := range plan.Wheels {
		data.Wheels = append(data.Wheels, renderWheel{
			WheelMark: wm,
			Selected:  selected != "" && wm.ID == selected,
			Inner:     wm.R / 2,
		})
	}

	return svgTemplate.ExecuteTemplate(w, "vehicle", data)
}

// RenderSVGString is RenderSVG into a string.
func RenderSVGString(plan *RenderPlan, vp Viewport, selected string) (string, error) {
	var buf bytes.Buffer
	if err := RenderSVG(&buf, plan, vp, selected); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WheelInfo is the info panel content for one wheel.
type WheelInfo struct {
	ID          string `json:"id"`
	Axle        string `json:"axle"`
	Position    string `json:"position"`
	Status      Status `json:"status"`
	StatusLabel string `json:"status_label"`
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
	LastUpdated string `json:"last_updated"`
	Battery     string `json:"battery"`
}

var statusLabels = map[Status]string{
	StatusNormal:   "Normal",
	StatusWarning:  "Warning",
	StatusCritical: "Critical",
	StatusNoData:   "No Data",
}

// WheelInfo builds the info panel for wheel id.
func (m *Model) WheelInfo(id string) (*WheelInfo, bool) {
	w, axle, ok := m.Wheel(id)
	if !ok {
		return nil, false
	}

	side := string(w.Side)
	return &WheelInfo{
		ID:          w.ID,
		Axle:        fmt.Sprintf("Axle %d", axle.Number),
		Position:    fmt.Sprintf("%s side, position %d", strings.ToUpper(side[:1])+side[1:], w.Index),
		Status:      w.Status,
		StatusLabel: statusLabels[w.Status],
		Temperature: fmt.Sprintf("%.1f°C", w.Reading.Temperature),
		Pressure:    fmt.Sprintf("%.1f bar", w.Reading.Pressure),
		LastUpdated: w.Reading.LastUpdated.Format(time.DateTime),
		Battery:     fmt.Sprintf("%d%%", w.Reading.Battery),
	}, true
}
