package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/stages/classifier"
	"mercator-hq/docguard/pkg/stages/drafter"
	"mercator-hq/docguard/pkg/stages/extractor"
	"mercator-hq/docguard/pkg/stages/reviewer"
)

// StageInput is everything a stage may read. Outputs of earlier stages are
// taken from Run.
type StageInput struct {
	Run       *model.Run
	Document  *model.Document
	Policy    *policy.PolicySet
	Decisions *model.DecisionContext
}

// Stage is one step of the pipeline.
type Stage interface {
	Name() model.StageName
	Execute(ctx context.Context, in *StageInput) (*model.StageOutput, error)
}

// Stages maps each stage name to its implementation.
type Stages map[model.StageName]Stage

// DefaultStages builds the four built-in stages over registry.
func DefaultStages(registry *detect.Registry, logger *slog.Logger) Stages {
	return Stages{
		model.StageClassify: &classifyStage{classifier: classifier.New()},
		model.StageExtract:  &extractStage{extractor: extractor.New(registry, logger)},
		model.StageReview:   &reviewStage{reviewer: reviewer.New(logger)},
		model.StageDraft:    &draftStage{drafter: drafter.New(registry, logger)},
	}
}

func (s Stages) validate() error {
	for _, name := range model.StageOrder {
		st, ok := s[name]
		if !ok || st == nil {
			return fmt.Errorf("no implementation for stage %s", name)
		}
		if st.Name() != name {
			return fmt.Errorf("stage registered as %s reports name %s", name, st.Name())
		}
	}
	return nil
}

type classifyStage struct {
	classifier *classifier.Classifier
}

func (s *classifyStage) Name() model.StageName { return model.StageClassify }

func (s *classifyStage) Execute(ctx context.Context, in *StageInput) (*model.StageOutput, error) {
	cls := s.classifier.Classify(ctx, in.Document, in.Policy)
	return &model.StageOutput{Stage: model.StageClassify, Classification: cls}, nil
}

type extractStage struct {
	extractor *extractor.Extractor
}

func (s *extractStage) Name() model.StageName { return model.StageExtract }

func (s *extractStage) Execute(ctx context.Context, in *StageInput) (*model.StageOutput, error) {
	cls, err := requireOutput(in.Run, model.StageClassify)
	if err != nil {
		return nil, err
	}
	res, err := s.extractor.Extract(ctx, in.Document, cls.Classification, in.Policy)
	if err != nil {
		return nil, err
	}
	return &model.StageOutput{Stage: model.StageExtract, Extraction: res}, nil
}

type reviewStage struct {
	reviewer *reviewer.Reviewer
}

func (s *reviewStage) Name() model.StageName { return model.StageReview }

func (s *reviewStage) Execute(ctx context.Context, in *StageInput) (*model.StageOutput, error) {
	cls, err := requireOutput(in.Run, model.StageClassify)
	if err != nil {
		return nil, err
	}
	ext, err := requireOutput(in.Run, model.StageExtract)
	if err != nil {
		return nil, err
	}
	res, err := s.reviewer.Review(ctx, &reviewer.Input{
		Document:       in.Document,
		Classification: cls.Classification,
		Extraction:     ext.Extraction,
		Policy:         in.Policy,
		Decisions:      in.Decisions,
	})
	if err != nil {
		return nil, err
	}
	return &model.StageOutput{Stage: model.StageReview, Review: res}, nil
}

type draftStage struct {
	drafter *drafter.Drafter
}

func (s *draftStage) Name() model.StageName { return model.StageDraft }

func (s *draftStage) Execute(ctx context.Context, in *StageInput) (*model.StageOutput, error) {
	cls, err := requireOutput(in.Run, model.StageClassify)
	if err != nil {
		return nil, err
	}
	ext, err := requireOutput(in.Run, model.StageExtract)
	if err != nil {
		return nil, err
	}
	rev, err := requireOutput(in.Run, model.StageReview)
	if err != nil {
		return nil, err
	}
	res, err := s.drafter.Draft(ctx, &drafter.Input{
		Document:        in.Document,
		Classification:  cls.Classification,
		Extraction:      ext.Extraction,
		Review:          rev.Review,
		Policy:          in.Policy,
		Decisions:       in.Decisions,
		ExternalSharing: in.Run.ExternalSharing,
	})
	if err != nil {
		return nil, err
	}
	return &model.StageOutput{Stage: model.StageDraft, Draft: res}, nil
}

func requireOutput(run *model.Run, stage model.StageName) (*model.StageOutput, error) {
	out := run.Output(stage)
	if out == nil {
		return nil, fmt.Errorf("missing %s output", stage)
	}
	return out, nil
}
