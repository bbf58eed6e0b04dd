package vehicle

import "go.uber.org/zap"

// Service generates a model and lays it out in one step.
type Service struct {
	generator *Generator
	layouts   *Layouts
	logger    *zap.Logger
}

func NewService(generator *Generator, layouts *Layouts, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, layouts: layouts, logger: logger}
}

// Build regenerates the model for cfg and returns it with its render plan.
func (s *Service) Build(cfg Config) (*Model, *RenderPlan, error) {
	m, err := s.generator.Generate(cfg)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.layouts.Plan(m)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Vehicle built",
		zap.String("type", string(cfg.Type)),
		zap.Int("axles", cfg.AxleCount),
		zap.String("scheme", string(plan.Scheme)),
		zap.Int("wheels", len(plan.Wheels)))

	return m, plan, nil
}

// Rand exposes the generator's random source to other simulations.
func (s *Service) Rand() Rand { return s.generator }
