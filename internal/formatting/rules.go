package formatting

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Operators lists the accepted rule operators.
var Operators = []string{entities.OperatorIncreaseOverAverage, entities.OperatorDecreaseUnderAverage}

// RuleInput is the admin form for a formatting rule.
type RuleInput struct {
	UtilityTypeID   uint            `json:"utility_type_id"`
	Name            string          `json:"name"`
	Operator        string          `json:"operator"`
	Threshold       decimal.Decimal `json:"threshold"`
	Color           string          `json:"color"`
	BackgroundColor string          `json:"background_color"`
	Priority        int             `json:"priority"`
	Enabled         *bool           `json:"enabled"`
}

// Validate checks the form without touching storage.
func (in *RuleInput) Validate() error {
	if in.UtilityTypeID == 0 {
		return errors.NewValidation("utility_type_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidation("name", "is required")
	}
	if in.Operator != entities.OperatorIncreaseOverAverage && in.Operator != entities.OperatorDecreaseUnderAverage {
		return errors.NewValidation("operator", "must be one of %s", strings.Join(Operators, ", "))
	}
	if in.Threshold.IsNegative() {
		return errors.NewValidation("threshold", "must not be negative")
	}
	if in.Color == "" && in.BackgroundColor == "" {
		return errors.NewValidation("color", "a text or background color is required")
	}
	if in.Color != "" && !hexColor.MatchString(in.Color) {
		return errors.NewValidation("color", "must be a hex color such as #b91c1c")
	}
	if in.BackgroundColor != "" && !hexColor.MatchString(in.BackgroundColor) {
		return errors.NewValidation("background_color", "must be a hex color such as #fee2e2")
	}
	return nil
}

// Service manages formatting rules and evaluates them against stored rules.
type Service struct {
	rules repository.FormattingRuleRepository
	types repository.UtilityTypeRepository
	log   logger.Logger
}

func NewService(rules repository.FormattingRuleRepository, types repository.UtilityTypeRepository, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{rules: rules, types: types, log: log.Module("formatting")}
}

// List returns rules in evaluation order. utilityTypeID 0 lists every type.
func (s *Service) List(ctx context.Context, utilityTypeID uint) ([]entities.FormattingRule, error) {
	return s.rules.List(ctx, repository.FormattingRuleFilter{UtilityTypeID: utilityTypeID})
}

func (s *Service) Get(ctx context.Context, id uint) (*entities.FormattingRule, error) {
	r, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, ruleNotFound(err, id)
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, in RuleInput) (*entities.FormattingRule, error) {
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}
	r := &entities.FormattingRule{}
	apply(r, &in)
	if err := s.rules.Create(ctx, r); err != nil {
		return nil, err
	}
	s.log.Info("formatting rule created", logger.String("name", r.Name), logger.Uint64("utility_type_id", uint64(r.UtilityTypeID)))
	return r, nil
}

func (s *Service) Update(ctx context.Context, id uint, in RuleInput) (*entities.FormattingRule, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}
	apply(r, &in)
	if err := s.rules.Update(ctx, r); err != nil {
		return nil, ruleNotFound(err, id)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return ruleNotFound(err, id)
	}
	return nil
}

// Annotate evaluates the stored enabled rules of a utility type.
func (s *Service) Annotate(ctx context.Context, utilityTypeID uint, current, average decimal.Decimal) (Annotation, bool, error) {
	enabled := true
	rules, err := s.rules.List(ctx, repository.FormattingRuleFilter{UtilityTypeID: utilityTypeID, Enabled: &enabled})
	if err != nil {
		return Annotation{}, false, err
	}
	a, ok := Evaluate(rules, utilityTypeID, current, average)
	return a, ok, nil
}

// Enabled loads every enabled rule, for callers that evaluate many values.
func (s *Service) Enabled(ctx context.Context) ([]entities.FormattingRule, error) {
	enabled := true
	return s.rules.List(ctx, repository.FormattingRuleFilter{Enabled: &enabled})
}

func (s *Service) check(ctx context.Context, in *RuleInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return err
	}
	if _, err := s.types.Get(ctx, in.UtilityTypeID); err != nil {
		if errors.Is(err, repository.ErrUtilityTypeNotFound) {
			return errors.NewValidation("utility_type_id", "unknown utility type %d", in.UtilityTypeID)
		}
		return err
	}
	return nil
}

func apply(r *entities.FormattingRule, in *RuleInput) {
	r.UtilityTypeID = in.UtilityTypeID
	r.Name = in.Name
	r.Operator = in.Operator
	r.Threshold = in.Threshold
	r.Color = in.Color
	r.BackgroundColor = in.BackgroundColor
	r.Priority = in.Priority
	if in.Enabled != nil {
		r.Enabled = *in.Enabled
	} else if r.ID == 0 {
		r.Enabled = true
	}
}

func ruleNotFound(err error, id uint) error {
	if errors.Is(err, repository.ErrFormattingRuleNotFound) {
		return &errors.NotFoundError{Entity: "formatting rule", ID: strconv.FormatUint(uint64(id), 10)}
	}
	return err
}
