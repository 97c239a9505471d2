package wire

import "github.com/banshee-data/catenary.report/internal/calib"

// PipelineConfig aggregates the per-frame processing parameters the
// composing layer resolves from configuration.
type PipelineConfig struct {
	PreProcessor  PreProcessorConfig
	Detector      DetectorConfig
	MinConfidence float64
}

// Pipeline is the synchronous per-frame processing chain:
// RawFrame -> PreProcessor -> Detector -> MeasurementEngine. Rule
// evaluation and persistence are driven by the caller so the chain
// itself never blocks on I/O.
type Pipeline struct {
	pre  *PreProcessor
	det  *Detector
	meas *MeasurementEngine
}

// NewPipeline wires the processing components around one calibration
// model.
func NewPipeline(cfg PipelineConfig, cal *calib.Model) *Pipeline {
	return &Pipeline{
		pre:  NewPreProcessor(cfg.PreProcessor, cal),
		det:  NewDetector(cfg.Detector),
		meas: NewMeasurementEngine(cal, cfg.MinConfidence),
	}
}

// Run processes one frame end to end. The returned measurement's
// physical fields are absent when detection confidence was too low.
func (p *Pipeline) Run(raw *RawFrame) Measurement {
	pf := p.pre.Run(raw)
	cand := p.det.Detect(pf)
	return p.meas.Compute(cand, pf.ROIOffsetX, pf.ROIOffsetY)
}

// PreProcessor exposes the preprocessing stage, e.g. for runtime ROI
// updates.
func (p *Pipeline) PreProcessor() *PreProcessor { return p.pre }

// Detector exposes the detection stage, e.g. for debug overlays.
func (p *Pipeline) Detector() *Detector { return p.det }
