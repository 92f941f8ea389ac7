package learning

import (
	"context"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cellarworks/cellar-intel/internal/domain"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// guardrailMargin is how much worse the test variant must be on a
// guardrail metric, relative to control, before it counts as a violation.
const guardrailMargin = 0.02

// AnalysisRequest parametrizes one Analyze call.
type AnalysisRequest struct {
	ExperimentID      string
	MetricName        string
	AnalysisType      domain.AnalysisType
	ConfidenceLevel   float64
	MinimumSampleSize int
	GuardrailMetrics  []string
}

// Analyzer computes frequentist and/or Bayesian analyses over ingested
// experiment events.
type Analyzer struct {
	experiments *persistence.ExperimentRepo
}

// NewAnalyzer constructs an Analyzer bound to experiments.
func NewAnalyzer(experiments *persistence.ExperimentRepo) *Analyzer {
	return &Analyzer{experiments: experiments}
}

// Analyze runs the requested analysis type(s) over req.MetricName's
// ingested events, evaluates guardrails, and derives a recommendation.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (*domain.ExperimentAnalysis, error) {
	data, err := a.experiments.ListEventsForAnalysis(ctx, req.ExperimentID, req.MetricName)
	if err != nil {
		return nil, err
	}

	control, test := split(data)
	result := &domain.ExperimentAnalysis{
		ExperimentID:      req.ExperimentID,
		MetricName:        req.MetricName,
		AnalysisType:      req.AnalysisType,
		ConfidenceLevel:   req.ConfidenceLevel,
		SampleSizeControl: len(control),
		SampleSizeTest:    len(test),
		ComputedAt:        time.Now().UTC(),
	}

	underpowered := len(control) < req.MinimumSampleSize || len(test) < req.MinimumSampleSize

	if req.AnalysisType == domain.AnalysisFrequentist || req.AnalysisType == domain.AnalysisBoth {
		pValue, effectSize, significant := welchTTest(control, test, req.ConfidenceLevel)
		result.PValue = &pValue
		result.EffectSize = &effectSize
		result.Significant = significant
	}

	if req.AnalysisType == domain.AnalysisBayesian || req.AnalysisType == domain.AnalysisBoth {
		probBetter := bayesianProbTestBetter(control, test)
		result.ProbTestBetter = &probBetter
		if result.PValue == nil {
			result.Significant = probBetter >= req.ConfidenceLevel || probBetter <= 1-req.ConfidenceLevel
		}
	}

	for _, metric := range req.GuardrailMetrics {
		guardData, err := a.experiments.ListEventsForAnalysis(ctx, req.ExperimentID, metric)
		if err != nil {
			continue
		}
		gControl, gTest := split(guardData)
		result.Guardrails = append(result.Guardrails, evaluateGuardrail(metric, gControl, gTest))
	}

	result.Recommendation = recommend(result, underpowered)
	if err := a.experiments.SaveAnalysis(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func split(data []persistence.AnalysisDatum) (control, test []float64) {
	for _, d := range data {
		if d.IsControl {
			control = append(control, d.Value)
		} else {
			test = append(test, d.Value)
		}
	}
	return
}

// welchTTest computes Welch's t-test p-value and Cohen's d effect size.
func welchTTest(control, test []float64, confidenceLevel float64) (pValue, effectSize float64, significant bool) {
	if len(control) < 2 || len(test) < 2 {
		return 1, 0, false
	}

	meanC, varC := stat.MeanVariance(control, nil)
	meanT, varT := stat.MeanVariance(test, nil)
	nC, nT := float64(len(control)), float64(len(test))

	se := math.Sqrt(varC/nC + varT/nT)
	if se == 0 {
		return 1, 0, false
	}
	t := (meanT - meanC) / se

	df := math.Pow(varC/nC+varT/nT, 2) /
		(math.Pow(varC/nC, 2)/(nC-1) + math.Pow(varT/nT, 2)/(nT-1))
	if df < 1 {
		df = 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = 2 * (1 - dist.CDF(math.Abs(t)))

	pooledSD := math.Sqrt((varC + varT) / 2)
	if pooledSD > 0 {
		effectSize = (meanT - meanC) / pooledSD
	}

	significant = pValue < (1 - confidenceLevel)
	return pValue, effectSize, significant
}

// bayesianProbTestBetter estimates P(test > control) via a normal-normal
// posterior approximation (continuous metrics) with Monte Carlo sampling.
func bayesianProbTestBetter(control, test []float64) float64 {
	if len(control) == 0 || len(test) == 0 {
		return 0.5
	}

	meanC, varC := stat.MeanVariance(control, nil)
	meanT, varT := stat.MeanVariance(test, nil)
	seC := math.Sqrt(varC / float64(len(control)))
	seT := math.Sqrt(varT / float64(len(test)))
	if seC == 0 {
		seC = 1e-6
	}
	if seT == 0 {
		seT = 1e-6
	}

	rng := rand.New(rand.NewSource(1))
	postC := distuv.Normal{Mu: meanC, Sigma: seC, Src: rng}
	postT := distuv.Normal{Mu: meanT, Sigma: seT, Src: rng}

	const samples = 20000
	wins := 0
	for i := 0; i < samples; i++ {
		if postT.Rand() > postC.Rand() {
			wins++
		}
	}
	return float64(wins) / samples
}

func evaluateGuardrail(metric string, control, test []float64) domain.GuardrailResult {
	meanC := stat.Mean(control, nil)
	meanT := stat.Mean(test, nil)
	violated := meanC > 0 && (meanC-meanT)/meanC > guardrailMargin
	return domain.GuardrailResult{
		Metric:      metric,
		ControlMean: meanC,
		TestMean:    meanT,
		IsViolated:  violated,
	}
}

func recommend(result *domain.ExperimentAnalysis, underpowered bool) domain.AnalysisRecommendation {
	for _, g := range result.Guardrails {
		if g.IsViolated {
			return domain.RecommendationRollback
		}
	}

	positive := result.EffectSize != nil && *result.EffectSize > 0
	if result.ProbTestBetter != nil {
		positive = positive || *result.ProbTestBetter > 0.5
	}

	if underpowered {
		return domain.RecommendationContinue
	}
	if result.Significant && positive {
		return domain.RecommendationShip
	}
	if result.Significant && !positive {
		return domain.RecommendationRollback
	}
	return domain.RecommendationInconclusive
}
