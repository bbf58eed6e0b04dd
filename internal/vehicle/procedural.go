package vehicle

import "fmt"

const bodyHeight = 100.0

// ProceduralLayout draws vehicles from rectangles. It also serves as the
// tractor fallback when artwork is unavailable.
type ProceduralLayout struct{}

func (ProceduralLayout) Layout(m *Model, cfg Config) (*RenderPlan, error) {
	if m == nil {
		return nil, fmt.Errorf("no model to lay out")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &RenderPlan{
		Type:   cfg.Type,
		Scheme: SchemeProcedural,
		Length: ComputeLength(cfg),
	}

	switch cfg.Type {
	case Truck:
		p.Body = truckBody(p.Length)
	case Tractor:
		p.Body = tractorBody(p.Length)
	case Trailer:
		p.Body = trailerBody(p.Length)
	case Combined:
		p.Body = combinedBody(cfg.AxleCount)
	}

	tractorAxles := 0
	if cfg.Type == Combined {
		tractorAxles = m.UnitAxleCount(UnitTractor)
	}

	for _, axle := range m.Axles {
		x := axle.Position
		if cfg.Type == Combined && axle.Unit == UnitTrailer {
			x = trailerAxleX(tractorAxles, axle.Number-tractorAxles-1)
		}

		p.Axles = append(p.Axles, AxleMarker{
			Number: axle.Number,
			X:      x,
			Y1:     CentreLineY - WheelSpacing,
			Y2:     CentreLineY + WheelSpacing,
			LabelY: CentreLineY - WheelSpacing - 15,
		})

		perSide := 0
		for _, w := range axle.Wheels {
			if w.Side == Left {
				perSide++
			}
		}

		for _, w := range axle.Wheels {
			wx, wy := x, CentreLineY
			if w.Side == Left {
				wy -= WheelSpacing
			} else {
				wy += WheelSpacing
			}
			if perSide > 1 {
				if w.Index == 1 {
					wx -= DualWheelOffset
				} else {
					wx += DualWheelOffset
				}
			}
			p.Wheels = append(p.Wheels, WheelMark{ID: w.ID, Status: w.Status, X: wx, Y: wy, R: WheelRadius})
		}
	}

	p.Fit = centreOnAnchor(p)
	return p, nil
}

// trailerAxleX positions a trailer axle of a combined vehicle. The offset
// depends on the current tractor axle count.
func trailerAxleX(tractorAxles, trailerIndex int) float64 {
	return unitLength(tractorAxles) + 70 + AxleBaseOffset + float64(trailerIndex)*AxleSpacing
}

func cab() []Rect {
	top := CentreLineY - bodyHeight
	return []Rect{
		{Class: "vehicle-cabin", X: 50, Y: top, W: 100, H: 70, RX: 10},
		{Class: "vehicle-window", X: 70, Y: top + 15, W: 60, H: 40, RX: 5},
		{Class: "vehicle-light front", X: 55, Y: top + 50, W: 15, H: 10, RX: 2},
		{Class: "vehicle-light front", X: 130, Y: top + 50, W: 15, H: 10, RX: 2},
	}
}

func rearLights(x float64) []Rect {
	top := CentreLineY - bodyHeight
	return []Rect{
		{Class: "vehicle-light rear", X: x, Y: top + 50, W: 15, H: 10, RX: 2},
		{Class: "vehicle-light rear", X: x, Y: top + 20, W: 15, H: 10, RX: 2},
	}
}

func fifthWheel(x float64) Rect {
	return Rect{Class: "vehicle-connector", X: x, Y: CentreLineY - 20, W: 40, H: 20, RX: 5}
}

func kingpin(x float64) Rect {
	return Rect{Class: "vehicle-connector", X: x, Y: CentreLineY - 20, W: 30, H: 20, RX: 5}
}

func truckBody(length float64) []Rect {
	body := []Rect{{Class: "vehicle-body", X: 50, Y: CentreLineY - bodyHeight, W: length, H: bodyHeight, RX: 10}}
	body = append(body, cab()...)
	return append(body, rearLights(length+30)...)
}

func tractorBody(length float64) []Rect {
	body := []Rect{{Class: "vehicle-body", X: 50, Y: CentreLineY - bodyHeight, W: length - 50, H: bodyHeight, RX: 10}}
	body = append(body, cab()...)
	return append(body, fifthWheel(length-70))
}

func trailerBody(length float64) []Rect {
	body := []Rect{
		{Class: "vehicle-body", X: 100, Y: CentreLineY - bodyHeight, W: length, H: bodyHeight, RX: 5},
		kingpin(70),
	}
	return append(body, rearLights(length+85)...)
}

func combinedBody(axleCount int) []Rect {
	tractorAxles := TractorAxles(axleCount)
	tractorLen := unitLength(tractorAxles)
	trailerLen := unitLength(axleCount - tractorAxles)
	trailerX := tractorLen + 20

	body := []Rect{{Class: "vehicle-body", X: 50, Y: CentreLineY - bodyHeight, W: tractorLen - 50, H: bodyHeight, RX: 10}}
	body = append(body, cab()...)
	body = append(body,
		fifthWheel(tractorLen-70),
		Rect{Class: "vehicle-body", X: trailerX, Y: CentreLineY - bodyHeight, W: trailerLen, H: bodyHeight, RX: 5},
		kingpin(trailerX-30),
	)
	return append(body, rearLights(trailerX+trailerLen-15)...)
}
