package app

import (
	"fmt"

	"github.com/MrWong99/phonoscope/internal/align"
	"github.com/MrWong99/phonoscope/internal/assess"
	"github.com/MrWong99/phonoscope/internal/classify"
	"github.com/MrWong99/phonoscope/internal/config"
	"github.com/MrWong99/phonoscope/internal/observe"
	"github.com/MrWong99/phonoscope/pkg/cost"
)

// BuildCostModel returns the cost model named by cfg, with the optional pair
// table layered over it.
func BuildCostModel(cfg config.AssessmentConfig) (cost.Model, error) {
	var m cost.Model
	switch cfg.CostModel {
	case "", config.CostUniform:
		m = cost.Default()
	case config.CostArticulatory:
		art := cost.NewArticulatory()
		m = cost.Fallback{Primary: art, Secondary: cost.NewGraded(), Worst: art.Substitution("p", "a")}
	case config.CostGraded:
		m = cost.NewGraded()
	default:
		return nil, fmt.Errorf("app: unknown cost model %q", cfg.CostModel)
	}
	if cfg.CostTable != "" {
		t, err := cost.LoadTableFile(cfg.CostTable, m)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		m = t
	}
	return m, nil
}

// BuildAssessor creates an assessor from the assessment section of the config.
func BuildAssessor(cfg config.AssessmentConfig, metrics *observe.Metrics) (*assess.Assessor, error) {
	policy, err := classify.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	mode, err := align.ParseMode(cfg.AlignMode)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	m, err := BuildCostModel(cfg)
	if err != nil {
		return nil, err
	}

	opts := []assess.Option{
		assess.WithCostModel(m),
		assess.WithPolicy(policy),
		assess.WithAlignOptions(align.WithMode(mode)),
		assess.WithMetrics(metrics),
	}
	if cfg.MaxCells > 0 {
		opts = append(opts, assess.WithAlignOptions(align.WithMaxCells(cfg.MaxCells)))
	}
	if cfg.RulesFile != "" {
		rs, err := assess.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		opts = append(opts, assess.WithRules(rs))
	}
	return assess.New(opts...), nil
}
