package vehicle

import (
	"bytes"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TractorArtwork is the artwork set used for the tractor type.
const TractorArtwork = "tractor"

//go:embed artwork
var embeddedArtwork embed.FS

type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// ArtworkAxle maps a logical axle onto artwork coordinates.
type ArtworkAxle struct {
	Number int   `yaml:"number"`
	Left   Point `yaml:"left"`
	Right  Point `yaml:"right"`
	// MinAxles hides the axle, and its Groups, below this axle count.
	MinAxles int      `yaml:"min_axles"`
	Groups   []string `yaml:"groups"`
}

type Recolor struct {
	Fills        map[string]string `yaml:"fills"`
	StrokeWidths map[string]string `yaml:"stroke_widths"`
}

type Fit struct {
	ReferenceWidth  float64 `yaml:"reference_width"`
	ReferenceHeight float64 `yaml:"reference_height"`
	ViewportWidth   float64 `yaml:"viewport_width"`
	ViewportHeight  float64 `yaml:"viewport_height"`
	Factor          float64 `yaml:"factor"`
	Translate       Point   `yaml:"translate"`
}

// Manifest describes an artwork set on disk.
type Manifest struct {
	Name            string        `yaml:"name"`
	Body            string        `yaml:"body"`
	Wheels          string        `yaml:"wheels"`
	Width           float64       `yaml:"width"`
	Height          float64       `yaml:"height"`
	CoordinateScale float64       `yaml:"coordinate_scale"`
	Offset          Point         `yaml:"offset"`
	Axles           []ArtworkAxle `yaml:"axles"`
	Recolor         Recolor       `yaml:"recolor"`
	Fit             Fit           `yaml:"fit"`
}

func (m *Manifest) validate() error {
	switch {
	case m.Body == "" || m.Wheels == "":
		return errors.New("manifest must name body and wheels files")
	case m.Width <= 0 || m.Height <= 0:
		return errors.New("manifest width and height must be positive")
	case m.CoordinateScale <= 0:
		return errors.New("manifest coordinate_scale must be positive")
	case m.Fit.ReferenceWidth <= 0 || m.Fit.ReferenceHeight <= 0:
		return errors.New("manifest fit reference size must be positive")
	case len(m.Axles) == 0:
		return errors.New("manifest has no axles")
	}
	return nil
}

// Project maps an artwork coordinate into the logical space.
func (m *Manifest) Project(p Point) (x, y float64) {
	return p.X*m.CoordinateScale + m.Offset.X, p.Y*m.CoordinateScale + m.Offset.Y
}

// FitViewport is the fixed transform artwork plans are shown with:
// min(vw/rw, vh/rh) * factor, then the fixed translation.
func (m *Manifest) FitViewport() Viewport {
	f := m.Fit
	return Viewport{
		Scale:      min(f.ViewportWidth/f.ReferenceWidth, f.ViewportHeight/f.ReferenceHeight) * f.Factor,
		TranslateX: f.Translate.X,
		TranslateY: f.Translate.Y,
	}
}

// Artwork is a loaded artwork set.
type Artwork struct {
	Manifest Manifest
	body     []byte
	wheels   []byte
}

// Compose merges body and wheel artwork into one fragment, recoloured, with
// the groups of axles beyond axleCount hidden.
func (a *Artwork) Compose(axleCount int) (*Fragment, error) {
	hidden := make(map[string]bool)
	for _, ax := range a.Manifest.Axles {
		if axleCount < ax.MinAxles || axleCount < ax.Number {
			for _, g := range ax.Groups {
				hidden[g] = true
			}
		}
	}

	var buf bytes.Buffer
	if err := rewriteSVG(&buf, a.body, a.Manifest.Recolor, hidden); err != nil {
		return nil, fmt.Errorf("body artwork: %w", err)
	}
	if err := rewriteSVG(&buf, a.wheels, a.Manifest.Recolor, hidden); err != nil {
		return nil, fmt.Errorf("wheel artwork: %w", err)
	}

	m := a.Manifest
	return &Fragment{
		Width:         m.Width,
		Height:        m.Height,
		X:             m.Offset.X,
		Y:             m.Offset.Y,
		DisplayWidth:  m.Width * m.CoordinateScale,
		DisplayHeight: m.Height * m.CoordinateScale,
		Content:       buf.String(),
	}, nil
}

// ArtworkLoader finds artwork sets in a list of file systems, first match
// wins, and caches them by name.
type ArtworkLoader struct {
	cache   sync.Map
	sources []fs.FS
}

func NewArtworkLoader(sources ...fs.FS) *ArtworkLoader {
	return &ArtworkLoader{sources: sources}
}

// DefaultArtworkLoader searches the given directories, then the artwork
// compiled into the binary.
func DefaultArtworkLoader(searchPaths []string) *ArtworkLoader {
	sources := make([]fs.FS, 0, len(searchPaths)+1)
	for _, p := range searchPaths {
		sources = append(sources, os.DirFS(p))
	}
	if sub, err := fs.Sub(embeddedArtwork, "artwork"); err == nil {
		sources = append(sources, sub)
	}
	return NewArtworkLoader(sources...)
}

func (l *ArtworkLoader) Load(name string) (*Artwork, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*Artwork), nil
	}

	var src fs.FS
	var data []byte
	for _, s := range l.sources {
		b, err := fs.ReadFile(s, path.Join(name, "manifest.yaml"))
		if err == nil {
			src, data = s, b
			break
		}
	}

	if data == nil {
		return nil, fmt.Errorf("artwork not found: %s (searched %d sources)", name, len(l.sources))
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", name, err)
	}
	if err := manifest.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest for %s: %w", name, err)
	}

	body, err := fs.ReadFile(src, path.Join(name, manifest.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to read body artwork: %w", err)
	}
	wheels, err := fs.ReadFile(src, path.Join(name, manifest.Wheels))
	if err != nil {
		return nil, fmt.Errorf("failed to read wheel artwork: %w", err)
	}

	art := &Artwork{Manifest: manifest, body: body, wheels: wheels}

	// Reject artwork that does not parse now rather than on every layout.
	if _, err := art.Compose(len(manifest.Axles)); err != nil {
		return nil, fmt.Errorf("artwork %s: %w", name, err)
	}

	l.cache.Store(name, art)
	return art, nil
}

func (l *ArtworkLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}

// ArtworkLayout composes external artwork and places wheels at the artwork's
// axle coordinates. Any load failure falls back to another strategy.
type ArtworkLayout struct {
	loader   *ArtworkLoader
	name     string
	fallback LayoutStrategy
	logger   *zap.Logger
}

func NewArtworkLayout(loader *ArtworkLoader, name string, fallback LayoutStrategy, logger *zap.Logger) *ArtworkLayout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtworkLayout{loader: loader, name: name, fallback: fallback, logger: logger}
}

func (a *ArtworkLayout) Layout(m *Model, cfg Config) (*RenderPlan, error) {
	if m == nil {
		return nil, fmt.Errorf("no model to lay out")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if a.loader == nil {
		return a.fallback.Layout(m, cfg)
	}

	art, err := a.loader.Load(a.name)
	if err != nil {
		a.logger.Warn("Artwork unavailable, using procedural layout",
			zap.String("artwork", a.name), zap.Error(err))
		return a.fallback.Layout(m, cfg)
	}

	frag, err := art.Compose(cfg.AxleCount)
	if err != nil {
		a.logger.Warn("Artwork compose failed, using procedural layout",
			zap.String("artwork", a.name), zap.Error(err))
		return a.fallback.Layout(m, cfg)
	}

	p := &RenderPlan{
		Type:    cfg.Type,
		Scheme:  SchemeArtwork,
		Length:  ComputeLength(cfg),
		Artwork: frag,
	}

	for _, ax := range art.Manifest.Axles {
		if cfg.AxleCount < ax.MinAxles || cfg.AxleCount < ax.Number {
			continue
		}
		axle := findAxle(m, ax.Number)
		if axle == nil {
			continue
		}

		perSide := 0
		for _, w := range axle.Wheels {
			if w.Side == Left {
				perSide++
			}
		}

		for _, w := range axle.Wheels {
			pos := ax.Right
			if w.Side == Left {
				pos = ax.Left
			}
			x, y := art.Manifest.Project(pos)
			if perSide > 1 {
				if w.Index == 1 {
					x -= DualWheelOffset
				} else {
					x += DualWheelOffset
				}
			}
			p.Wheels = append(p.Wheels, WheelMark{ID: w.ID, Status: w.Status, X: x, Y: y, R: WheelRadius})
		}
	}

	p.Fit = art.Manifest.FitViewport()
	return p, nil
}

func findAxle(m *Model, number int) *Axle {
	for i := range m.Axles {
		if m.Axles[i].Number == number {
			return &m.Axles[i]
		}
	}
	return nil
}

// rewriteSVG copies the children of an SVG document's root element to w,
// applying recolouring to paths and hiding the listed element ids.
func rewriteSVG(w io.Writer, data []byte, rc Recolor, hidden map[string]bool) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	enc := xml.NewEncoder(w)

	depth := 0
	sawRoot := false
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				if t.Name.Local != "svg" {
					return fmt.Errorf("root element is <%s>, want <svg>", t.Name.Local)
				}
				sawRoot = true
				continue
			}
			if err := enc.EncodeToken(rewriteElement(t, rc, hidden)); err != nil {
				return err
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				continue
			}
			t.Name = flatName(t.Name)
			if err := enc.EncodeToken(t); err != nil {
				return err
			}
		case xml.CharData:
			if depth >= 1 {
				if err := enc.EncodeToken(t.Copy()); err != nil {
					return err
				}
			}
		}
	}

	if !sawRoot {
		return errors.New("no <svg> root element")
	}
	if depth != 0 {
		return errors.New("unbalanced svg document")
	}
	return enc.Flush()
}

func rewriteElement(t xml.StartElement, rc Recolor, hidden map[string]bool) xml.StartElement {
	out := xml.StartElement{Name: flatName(t.Name), Attr: make([]xml.Attr, 0, len(t.Attr)+1)}

	var fill, stroke, id string
	for _, a := range t.Attr {
		a.Name = flatName(a.Name)
		switch a.Name.Local {
		case "fill":
			fill = a.Value
		case "stroke":
			stroke = a.Value
		case "id":
			id = a.Value
		}
		out.Attr = append(out.Attr, a)
	}

	if out.Name.Local == "path" {
		if repl, ok := rc.Fills[fill]; ok {
			setAttr(&out, "fill", repl)
		}
		if width, ok := rc.StrokeWidths[stroke]; ok {
			setAttr(&out, "stroke-width", width)
		}
	}

	if id != "" && hidden[id] {
		style := "display:none"
		for _, a := range out.Attr {
			if a.Name.Local == "style" && a.Value != "" {
				style = strings.TrimRight(a.Value, "; ") + ";display:none"
			}
		}
		setAttr(&out, "style", style)
	}

	return out
}

func setAttr(e *xml.StartElement, name, value string) {
	for i := range e.Attr {
		if e.Attr[i].Name.Local == name {
			e.Attr[i].Value = value
			return
		}
	}
	e.Attr = append(e.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// flatName keeps a prefixed name as written, e.g. xlink:href.
func flatName(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}
	return xml.Name{Local: n.Space + ":" + n.Local}
}
