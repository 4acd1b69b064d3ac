package utilities

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

const (
	// DefaultSuggestionWindowDays bounds how far back unmapped accounts are
	// collected.
	DefaultSuggestionWindowDays = 90

	reprocessBatchSize = 500
)

// Suggestion is a GL account seen in recent expenses without an active mapping.
type Suggestion struct {
	GLAccountNumber  string `json:"gl_account_number"`
	GLAccountName    string `json:"gl_account_name"`
	Occurrences      int64  `json:"occurrences"`
	SuggestedTypeID  *uint  `json:"suggested_type_id"`
	SuggestedTypeKey string `json:"suggested_type_key,omitempty"`
}

// ReprocessResult summarizes a reclassification pass. Reclassified and
// Cleared describe the state after the pass, so repeated runs with the same
// mappings report the same numbers; Changed counts rows actually rewritten.
type ReprocessResult struct {
	Processed    int                `json:"processed"`
	Reclassified int                `json:"reclassified"`
	Cleared      int                `json:"cleared"`
	Changed      int                `json:"changed"`
	Errors       []errors.ItemError `json:"errors"`
}

// AccountInput is the admin form for a mapping.
type AccountInput struct {
	GLAccountNumber string `json:"gl_account_number"`
	GLAccountName   string `json:"gl_account_name"`
	UtilityTypeID   uint   `json:"utility_type_id"`
	IsActive        *bool  `json:"is_active"`
}

// Mapper maintains GL account mappings and derives expense classifications
// from them.
type Mapper struct {
	accounts repository.UtilityAccountRepository
	types    repository.UtilityTypeRepository
	expenses repository.ExpenseRepository
	log      logger.Logger
	now      func() time.Time
}

func NewMapper(accounts repository.UtilityAccountRepository, types repository.UtilityTypeRepository, expenses repository.ExpenseRepository, log logger.Logger) *Mapper {
	if log == nil {
		log = logger.Discard()
	}
	return &Mapper{
		accounts: accounts,
		types:    types,
		expenses: expenses,
		log:      log.Module("utilities.mapper"),
		now:      time.Now,
	}
}

func (m *Mapper) List(ctx context.Context, filter repository.UtilityAccountFilter) ([]entities.UtilityAccount, error) {
	return m.accounts.List(ctx, filter)
}

func (m *Mapper) Get(ctx context.Context, id uint) (*entities.UtilityAccount, error) {
	a, err := m.accounts.Get(ctx, id)
	if err != nil {
		return nil, accountNotFound(err, id)
	}
	return a, nil
}

// Map creates a mapping. A number that is already mapped, active or not, is a
// DuplicateAccountError; the existing mapping should be edited instead.
// Existing expenses keep their tags until the next reprocess.
func (m *Mapper) Map(ctx context.Context, in AccountInput) (*entities.UtilityAccount, error) {
	number := strings.TrimSpace(in.GLAccountNumber)
	if number == "" {
		return nil, errors.NewValidation("gl_account_number", "is required")
	}
	if err := m.checkType(ctx, in.UtilityTypeID); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	a := &entities.UtilityAccount{
		GLAccountNumber: number,
		GLAccountName:   strings.TrimSpace(in.GLAccountName),
		UtilityTypeID:   in.UtilityTypeID,
		IsActive:        active,
	}
	if err := m.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, &errors.DuplicateAccountError{AccountNumber: number}
		}
		return nil, err
	}
	m.log.Info("GL account mapped",
		logger.String("gl_account_number", number),
		logger.Uint64("utility_type_id", uint64(in.UtilityTypeID)),
		logger.Bool("active", active))
	return a, nil
}

// Update edits name, type and active flag. The account number is immutable;
// a different number in the input is rejected.
func (m *Mapper) Update(ctx context.Context, id uint, in AccountInput) (*entities.UtilityAccount, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(in.GLAccountNumber); n != "" && n != a.GLAccountNumber {
		return nil, errors.NewValidation("gl_account_number", "cannot be changed; delete and re-map instead")
	}
	if in.UtilityTypeID != 0 {
		if err := m.checkType(ctx, in.UtilityTypeID); err != nil {
			return nil, err
		}
		a.UtilityTypeID = in.UtilityTypeID
	}
	a.GLAccountName = strings.TrimSpace(in.GLAccountName)
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if err := m.accounts.Update(ctx, a); err != nil {
		return nil, accountNotFound(err, id)
	}
	return m.Get(ctx, id)
}

// Delete removes a mapping. Expenses it classified keep their tag until the
// next reprocess.
func (m *Mapper) Delete(ctx context.Context, id uint) error {
	if err := m.accounts.Delete(ctx, id); err != nil {
		return accountNotFound(err, id)
	}
	return nil
}

// Classify returns the utility type an account number maps to. Inactive and
// missing mappings report false.
func (m *Mapper) Classify(ctx context.Context, number string) (uint, bool, error) {
	a, err := m.accounts.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		if errors.Is(err, repository.ErrUtilityAccountNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if !a.IsActive {
		return 0, false, nil
	}
	return a.UtilityTypeID, true, nil
}

// ClassifyExpense tags e from the current mappings without saving it.
func (m *Mapper) ClassifyExpense(ctx context.Context, e *entities.Expense) error {
	typeID, ok, err := m.Classify(ctx, e.GLAccountNumber)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	e.ClassifiedAt = &now
	if ok {
		e.UtilityTypeID = &typeID
	} else {
		e.UtilityTypeID = nil
	}
	return nil
}

// Ingest classifies each expense and upserts it by source id. Invalid
// records are reported per item and skipped.
func (m *Mapper) Ingest(ctx context.Context, batch []entities.Expense) (int, []errors.ItemError, error) {
	saved := 0
	var itemErrs []errors.ItemError
	for i := range batch {
		e := &batch[i]
		if msg := checkExpense(e); msg != "" {
			itemErrs = append(itemErrs, errors.ItemError{Item: expenseLabel(e), Message: msg})
			continue
		}
		e.ID = 0
		if err := m.ClassifyExpense(ctx, e); err != nil {
			return saved, itemErrs, err
		}
		if err := m.expenses.Upsert(ctx, e); err != nil {
			itemErrs = append(itemErrs, errors.ItemError{Item: expenseLabel(e), Message: err.Error()})
			continue
		}
		saved++
	}
	return saved, itemErrs, nil
}

// SuggestUnmapped lists accounts seen in the last windowDays of expenses that
// have no active mapping, most frequent first with ties by number.
func (m *Mapper) SuggestUnmapped(ctx context.Context, windowDays int) ([]Suggestion, error) {
	if windowDays <= 0 {
		windowDays = DefaultSuggestionWindowDays
	}
	since := m.now().AddDate(0, 0, -windowDays)
	rows, err := m.expenses.UnmappedSince(ctx, since, 0)
	if err != nil {
		return nil, err
	}
	types, err := m.types.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(rows))
	for _, r := range rows {
		s := Suggestion{
			GLAccountNumber: r.GLAccountNumber,
			GLAccountName:   r.GLAccountName,
			Occurrences:     r.Occurrences,
		}
		if t := SuggestType(r.GLAccountName, types); t != nil {
			id := t.ID
			s.SuggestedTypeID = &id
			s.SuggestedTypeKey = t.Key
		}
		out = append(out, s)
	}
	return out, nil
}

// Reprocess re-derives the tag of every stored expense from the active
// mappings. Expenses whose account is unmapped or inactive lose their tag.
// Per-record failures are collected and never stop the pass. progress, when
// set, is called after each batch with the running total.
func (m *Mapper) Reprocess(ctx context.Context, progress func(processed int)) (ReprocessResult, error) {
	res := ReprocessResult{Errors: []errors.ItemError{}}
	mappings, err := m.accounts.ActiveMappings(ctx)
	if err != nil {
		return res, err
	}
	at := m.now().UTC()

	err = m.expenses.ForEachBatch(ctx, reprocessBatchSize, func(batch []entities.Expense) error {
		for i := range batch {
			e := &batch[i]
			res.Processed++
			if strings.TrimSpace(e.GLAccountNumber) == "" {
				res.Errors = append(res.Errors, errors.ItemError{Item: expenseLabel(e), Message: "missing GL account number"})
				continue
			}

			var target *uint
			if typeID, ok := mappings[e.GLAccountNumber]; ok {
				target = &typeID
			}
			if !sameTag(e.UtilityTypeID, target) {
				if err := m.expenses.SetClassification(ctx, e.ID, target, at); err != nil {
					res.Errors = append(res.Errors, errors.ItemError{Item: expenseLabel(e), Message: err.Error()})
					continue
				}
				res.Changed++
			}
			if target != nil {
				res.Reclassified++
			} else {
				res.Cleared++
			}
		}
		if progress != nil {
			progress(res.Processed)
		}
		return ctx.Err()
	})
	if err != nil {
		return res, err
	}

	m.log.Info("expenses reprocessed",
		logger.Int("processed", res.Processed),
		logger.Int("reclassified", res.Reclassified),
		logger.Int("cleared", res.Cleared),
		logger.Int("changed", res.Changed),
		logger.Int("errors", len(res.Errors)))
	return res, nil
}

func (m *Mapper) checkType(ctx context.Context, id uint) error {
	if id == 0 {
		return errors.NewValidation("utility_type_id", "is required")
	}
	if _, err := m.types.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUtilityTypeNotFound) {
			return errors.NewValidation("utility_type_id", "unknown utility type %d", id)
		}
		return err
	}
	return nil
}

func checkExpense(e *entities.Expense) string {
	switch {
	case strings.TrimSpace(e.SourceID) == "":
		return "source_id is required"
	case strings.TrimSpace(e.PropertyID) == "":
		return "property_id is required"
	case strings.TrimSpace(e.GLAccountNumber) == "":
		return "gl_account_number is required"
	case e.PostedOn.IsZero():
		return "posted_on is required"
	}
	return ""
}

func expenseLabel(e *entities.Expense) string {
	if e.SourceID != "" {
		return "expense " + e.SourceID
	}
	return "expense #" + strconv.FormatUint(uint64(e.ID), 10)
}

func sameTag(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func accountNotFound(err error, id uint) error {
	if errors.Is(err, repository.ErrUtilityAccountNotFound) {
		return &errors.NotFoundError{Entity: "utility account", ID: strconv.FormatUint(uint64(id), 10)}
	}
	return err
}
